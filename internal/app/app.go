package app

import (
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/ordermind/ordermind/config"
	"github.com/ordermind/ordermind/internal/bulkorder"
	"github.com/ordermind/ordermind/internal/chat"
	"github.com/ordermind/ordermind/internal/domain"
	"github.com/ordermind/ordermind/internal/llm"
	"github.com/ordermind/ordermind/internal/store"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	bus       EventBus.Bus

	customers store.CustomerRepository
	products  store.ProductRepository
	orders    store.OrderRepository
	chatlogs  store.ChatLogRepository

	chatManager *chat.Manager
	bulkManager *bulkorder.Manager
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ EventBusProvider  = (*Application)(nil)
	_ ChatProvider      = (*Application)(nil)
	_ BulkOrderProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	// wait for database initialization to complete
	go func() {
		time.Sleep(3 * time.Second)
		a.checkProducts()
		a.checkCustomers()
	}()

	a.bus = EventBus.New()
	a.initServices(cfg)
	a.subscribeEvents()
	a.initJob()
}

// initServices wires repositories, the LLM boundary and the managers.
func (a *Application) initServices(cfg *config.AppConfig) {
	a.customers = store.NewGormCustomerRepository(a.gormDB)
	a.products = store.NewGormProductRepository(a.gormDB)
	a.orders = store.NewGormOrderRepository(a.gormDB)
	a.chatlogs = store.NewGormChatLogRepository(a.gormDB)

	extractor := llm.NewExtractor(llm.NewOpenAIClient(cfg.LLM))
	sessions := chat.NewSessionRegistry(time.Duration(cfg.Chat.SessionTTLMin) * time.Minute)

	a.chatManager = chat.NewManager(extractor, a.customers, a.products, a.orders, a.chatlogs, sessions, a.bus)
	a.bulkManager = bulkorder.NewManager(a.products, a.orders, a.bus)
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEBUG_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Bus returns the process-local event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// ChatManager returns the conversation manager
func (a *Application) ChatManager() *chat.Manager {
	return a.chatManager
}

// BulkManager returns the bulk order manager
func (a *Application) BulkManager() *bulkorder.Manager {
	return a.bulkManager
}

// Customers returns the customer repository
func (a *Application) Customers() store.CustomerRepository {
	return a.customers
}

// Products returns the product repository
func (a *Application) Products() store.ProductRepository {
	return a.products
}

// Orders returns the order repository
func (a *Application) Orders() store.OrderRepository {
	return a.orders
}

// ChatLogs returns the conversation history repository
func (a *Application) ChatLogs() store.ChatLogRepository {
	return a.chatlogs
}

// subscribeEvents attaches audit logging to order lifecycle events.
func (a *Application) subscribeEvents() {
	_ = a.bus.Subscribe(chat.EventOrderCreated, func(orderID int64) {
		zap.L().Info("order created", zap.Int64("order_id", orderID))
	})
	_ = a.bus.Subscribe(bulkorder.EventOrderBackordered, func(orderID int64) {
		zap.L().Warn("order backordered", zap.Int64("order_id", orderID))
	})
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	_ = zap.L().Sync()
}
