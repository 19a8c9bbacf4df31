package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"coworking/backend/internal/cache"
	"coworking/backend/internal/catalog"
	"coworking/backend/internal/config"
	"coworking/backend/internal/lock"
	"coworking/backend/internal/notify"
	"coworking/backend/internal/recordstore"
	"coworking/backend/internal/scheduler"
	"coworking/backend/internal/service/availability"
	"coworking/backend/internal/service/bookings"
	"coworking/backend/internal/service/directory"
	"coworking/backend/internal/service/recurrence"
	"coworking/backend/internal/store"
	"coworking/backend/internal/store/postgres"
	"coworking/backend/internal/store/records"
	grpcTransport "coworking/backend/internal/transport/grpc"
)

const redisKeyPrefix = "cowork:"

type stores struct {
	rooms    store.RoomStore
	bookings store.BookingRepository
	events   store.EventRepository
	people   store.PersonDirectory
	close    func()
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("venue_timezone", cfg.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, log, cfg)
	if err != nil {
		os.Exit(1)
	}
	defer st.close()

	sharedCache, locker, closeRedis, err := openShared(ctx, log, cfg)
	if err != nil {
		log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		os.Exit(1)
	}
	defer closeRedis()

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, log)
	if err != nil {
		log.Error("notifier init failed", slog.Any("err", err))
		os.Exit(1)
	}

	rooms := catalog.New(st.rooms)
	people := directory.New(st.people, sharedCache, cfg.DirectoryCacheTTL, log)

	bookingSvc := bookings.NewService(bookings.Deps{
		Rooms:           rooms,
		Bookings:        st.bookings,
		Directory:       people,
		Locker:          locker,
		LockHold:        cfg.GRPCRequestTimeout,
		Notifier:        notifier,
		NotifyChannelID: cfg.BookingsChannelID,
		Location:        cfg.Location,
		Log:             log,
	})
	reporter := availability.NewReporter(rooms, st.bookings, cfg.Location, nil)
	recurrenceSvc := recurrence.NewService(st.events, cfg.Location, log)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingServer(bookingSvc, reporter, recurrenceSvc, cfg.Location, log))

	if cfg.FeedChannelID != "" {
		refresher := availability.NewRefresher(reporter, notifier, sharedCache, cfg.FeedChannelID, log)
		go scheduler.New("availability-feed", refresher, cfg.FeedInterval, cfg.GRPCRequestTimeout*3, log).Start(ctx)
		log.Info("availability feed scheduled", slog.String("channel_id", cfg.FeedChannelID), slog.Duration("interval", cfg.FeedInterval))
	} else {
		log.Info("availability feed disabled (no channel configured)")
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// openStores logs its own failures.
func openStores(ctx context.Context, log *slog.Logger, cfg config.Config) (stores, error) {
	if cfg.StoreBackend == config.BackendRecords {
		client, err := recordstore.NewClient(recordstore.Config{
			BaseURL: cfg.RecordsBaseURL,
			APIKey:  cfg.RecordsAPIKey,
			Timeout: cfg.RecordsTimeout,
		})
		if err != nil {
			log.Error("record store init failed", slog.Any("err", err))
			return stores{}, err
		}
		repo := records.New(client)
		log.Info("using record store", slog.String("records_host", hostOf(cfg.RecordsBaseURL)))
		return stores{rooms: repo, bookings: repo, events: repo, people: repo, close: func() {}}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return stores{}, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}

	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("database migration failed", slog.Any("err", err))
			closeDB()
			return stores{}, err
		}
		log.Info("database migrations applied")
	}

	return stores{
		rooms:    postgres.NewRoomRepo(db),
		bookings: postgres.NewBookingRepo(db),
		events:   postgres.NewEventRepo(db),
		people:   postgres.NewPersonRepo(db),
		close:    closeDB,
	}, nil
}

// openShared returns the cache and room locker. Without redis both stay in
// process, which is only correct for a single replica.
func openShared(ctx context.Context, log *slog.Logger, cfg config.Config) (cache.Cache, lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, using in-process cache and locks")
		return cache.NewMemory(0, nil), lock.NewKeyedMutex(), func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	closeRedis := func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}
	log.Info("redis connected", slog.String("redis_addr", cfg.RedisAddr), slog.Int("redis_db", cfg.RedisDB))
	return cache.NewRedis(client, redisKeyPrefix), lock.NewRedisLocker(client, redisKeyPrefix+"lock:", cfg.LockTTL), closeRedis, nil
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
