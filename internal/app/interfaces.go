package app

import (
	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/ordermind/ordermind/config"
	"github.com/ordermind/ordermind/internal/bulkorder"
	"github.com/ordermind/ordermind/internal/chat"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// EventBusProvider provides the process-local event bus
type EventBusProvider interface {
	Bus() EventBus.Bus
}

// ChatProvider provides the conversation manager
type ChatProvider interface {
	ChatManager() *chat.Manager
}

// BulkOrderProvider provides the bulk order manager
type BulkOrderProvider interface {
	BulkManager() *bulkorder.Manager
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	EventBusProvider
	ChatProvider
	BulkOrderProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
