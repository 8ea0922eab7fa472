package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cast"
)

const NA = "N/A"

var snowflakeNode *snowflake.Node

func init() {
	var err error
	nodeid := cast.ToInt64(os.Getenv("ORDERMIND_NODE_ID"))
	if nodeid <= 0 || nodeid > 1023 {
		nodeid = 1
	}
	snowflakeNode, err = snowflake.NewNode(nodeid)
	if err != nil {
		panic(err)
	}
}

// UUID returns a snowflake-based string identifier.
func UUID() string {
	return snowflakeNode.Generate().String()
}

// IsEmptyOrNA reports whether a string carries no usable value.
func IsEmptyOrNA(val string) bool {
	v := strings.TrimSpace(val)
	return v == "" || v == NA
}

// FmtMoney renders an amount in the display format used across replies.
func FmtMoney(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
