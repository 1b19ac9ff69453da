package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kerimlews/taskmanager/config"
	"github.com/kerimlews/taskmanager/handlers"
	"github.com/kerimlews/taskmanager/logging"
	"github.com/kerimlews/taskmanager/middleware"
	"github.com/kerimlews/taskmanager/repositories"
	"github.com/kerimlews/taskmanager/services"
	"github.com/kerimlews/taskmanager/utils"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const shutdownTimeout = 30 * time.Second

type stores struct {
	tasks interface {
		services.TaskStore
		services.ReminderTaskStore
	}
	users  services.UserStore
	client *mongo.Client
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLogger(logging.Options{
		SystemName: "tasks-service",
		File:       cfg.LogFile,
		Level:      cfg.LogLevel,
	})
	logger := logging.Logger
	logger.Info("Event ID: SERVICE_START, Description: Starting Tasks Service...")

	st, err := openStores(cfg)
	if err != nil {
		logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: %v", err)
	}

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	mailer := utils.NewSMTPMailer(utils.SMTPConfig{
		Host:        cfg.EmailHost,
		Port:        cfg.EmailPort,
		Username:    cfg.EmailUser,
		Password:    cfg.EmailPass,
		From:        cfg.EmailFrom,
		ImplicitTLS: cfg.EmailSecure,
	}, logger)

	taskService := services.NewTaskService(st.tasks, st.users, logger)
	userService := services.NewUserService(st.users, utils.NewPasswordHasher(cfg.BcryptCost), tokens, cfg.AdminEmails, logger)
	if cfg.PasswordBlacklistFile != "" {
		blacklist, err := services.LoadPasswordBlacklist(cfg.PasswordBlacklistFile)
		if err != nil {
			logger.Fatalf("Event ID: BLACKLIST_LOAD_FAILED, Description: Failed to load password blacklist: %v", err)
		}
		userService.WithPasswordBlacklist(blacklist)
		logger.Infof("Event ID: BLACKLIST_LOADED, Description: Loaded %d blacklisted passwords", len(blacklist))
	}
	reminderService := services.NewReminderService(st.tasks, st.users, mailer, services.ReminderSettings{
		Interval:    cfg.ReminderInterval,
		Window:      cfg.ReminderWindow,
		SendTimeout: cfg.ReminderSendTimeout,
		Concurrency: cfg.ReminderConcurrency,
		Location:    cfg.Timezone,
	}, logger)

	router := handlers.NewRouter(handlers.Handlers{
		Tasks:     handlers.NewTaskHandler(taskService, logger),
		Auth:      handlers.NewAuthHandler(userService, logger),
		Users:     handlers.NewUserHandler(userService, logger),
		Reminders: handlers.NewReminderHandler(reminderService, logger),
	}, tokens, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.EnableCORS(cfg.CORSOrigin)(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	if cfg.ReminderEnabled {
		reminderService.Start(schedulerCtx)
	}

	go func() {
		logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"reminder-scheduler": func(ctx context.Context) error {
			// Cancelling aborts in-flight sends so Stop does not wait out their timeouts.
			cancelScheduler()
			reminderService.Stop()
			return nil
		},
	})

	exitCode := <-wait

	if st.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := st.client.Disconnect(ctx); err != nil {
			logger.Errorf("Event ID: DB_DISCONNECT_FAILED, Description: %v", err)
		}
		cancel()
	}
	logger.Infof("Event ID: SERVICE_STOP, Description: Tasks Service exited with code %d", exitCode)
	os.Exit(exitCode)
}

func openStores(cfg *config.Config) (*stores, error) {
	logger := logging.Logger

	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("Event ID: DB_MEMORY_STORE, Description: Using in-memory stores, data is lost on restart")
		return &stores{
			tasks: repositories.NewMemoryTaskRepository(),
			users: repositories.NewMemoryUserRepository(),
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("database connection for MongoDB failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB connection ping error: %w", err)
	}
	logger.Info("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB")

	db := client.Database(cfg.MongoDBName)
	taskRepo := repositories.NewTaskRepository(db.Collection(cfg.TasksCollection), logger)
	userRepo := repositories.NewUserRepository(db.Collection(cfg.UsersCollection), logger)
	if err := taskRepo.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	logger.Infof("Event ID: DB_COLLECTION_SET, Description: Using MongoDB collections: %s/%s, %s/%s",
		cfg.MongoDBName, cfg.TasksCollection, cfg.MongoDBName, cfg.UsersCollection)

	return &stores{tasks: taskRepo, users: userRepo, client: client}, nil
}
