package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce_back_end/internal/cache"
	"ecommerce_back_end/internal/config"
	"ecommerce_back_end/internal/database"
	"ecommerce_back_end/internal/eventbus"
	"ecommerce_back_end/internal/gateway"
	"ecommerce_back_end/internal/middleware"
	"ecommerce_back_end/internal/repository"
	"ecommerce_back_end/internal/routes"
	"ecommerce_back_end/internal/services"
	"ecommerce_back_end/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Configuration invalide")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("❌ Connexion au stockage impossible")
	}
	defer closeStore()

	// Redis : panier, déduplication des webhooks, cache produit, rate limit.
	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Erreur connexion Redis")
	}
	var (
		cartStore    cache.CartStore    = cache.NewMemoryCartStore()
		dedup        cache.EventDeduper = cache.NewMemoryEventDeduper()
		productCache cache.ProductCache = cache.NoopProductCache{}
		limiter      middleware.Limiter = middleware.NewMemoryLimiter()
	)
	if redisClient != nil {
		defer redisClient.Close()
		cartStore = cache.NewRedisCartStore(redisClient)
		dedup = cache.NewRedisEventDeduper(redisClient)
		productCache = cache.NewRedisProductCache(redisClient)
		limiter = middleware.NewRedisLimiter(redisClient)
	} else {
		log.Warn().Msg("⚠️ REDIS_HOST absent : panier et déduplication en mémoire")
	}

	var searcher services.ProductSearcher
	if esClient, err := database.ConnectElastic(cfg); err != nil {
		log.Warn().Err(err).Msg("⚠️ Elasticsearch indisponible, recherche locale")
	} else if esClient != nil {
		searcher = services.NewElasticSearcher(esClient, cfg.ElasticIndex)
	}

	var images services.ImageStorage
	if minioClient, err := database.ConnectMinIO(ctx, cfg); err != nil {
		log.Warn().Err(err).Msg("⚠️ MinIO indisponible, upload d'images désactivé")
	} else if minioClient != nil {
		storage := services.NewMinioImageStorage(minioClient, cfg.MinioBucket, cfg.MinioPublicURL)
		if err := storage.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.MinioBucket).Msg("⚠️ Bucket MinIO indisponible")
		} else {
			images = storage
		}
	}

	var publisher eventbus.Publisher = eventbus.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ RabbitMQ indisponible, événements non publiés")
		} else {
			publisher = rabbit
		}
	}
	defer publisher.Close()

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.SMTPEnabled() {
		mailer := utils.NewMailer(utils.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		notifier = services.NewEmailNotifier(store.Users, mailer)
	}

	inventory := services.NewInventory(store.Products)
	flow := services.NewOrderFlow(store.Products, store.Orders, inventory, publisher, notifier, services.OrderFlowConfig{
		ReleaseStockOnPaymentFailure: cfg.ReleaseStockOnPaymentFailure,
	})
	stripeGateway := gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	log.Info().Msg("✅ Stripe initialisé")

	deps := routes.Dependencies{
		Catalog: services.NewCatalog(store.Products, store.Categories, productCache, searcher, images),
		Carts:   services.NewCarts(cartStore, store.Products, inventory, flow),
		Orders:  flow,
		Payments: services.NewPayments(stripeGateway, store.Orders, store.Payments, store.Users, flow, dedup, services.PaymentsConfig{
			Currency:          cfg.PaymentCurrency,
			DefaultSuccessURL: cfg.PaymentSuccessURL,
			DefaultCancelURL:  cfg.PaymentCancelURL,
		}),
		Users:     services.NewUsers(store.Users, cfg.JWTSecret, cfg.JWTTTL),
		Limiter:   limiter,
		JWTSecret: cfg.JWTSecret,
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOriginList(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("🚀 Serveur lancé")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Serveur arrêté")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Arrêt en cours...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ Arrêt du serveur")
	}
	log.Info().Msg("Serveur arrêté")
}

// openStore choisit le stockage selon STORE_DRIVER.
func openStore(cfg *config.Config) (*repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.ConnectPostgres(cfg)
		if err != nil {
			return nil, nil, err
		}
		store := &repository.Store{
			Products:   repository.NewPostgresProductStore(db),
			Categories: repository.NewPostgresCategoryStore(db),
			Orders:     repository.NewPostgresOrderStore(db),
			Payments:   repository.NewPostgresPaymentStore(db),
			Users:      repository.NewPostgresUserStore(db),
		}
		return store, func() { db.Close() }, nil

	case config.StoreMemory:
		log.Warn().Msg("⚠️ Stockage en mémoire : données perdues à l'arrêt")
		return repository.NewMemoryStore().Store(), func() {}, nil

	default:
		scylla, err := database.NewScyllaManager(cfg)
		if err != nil {
			return nil, nil, err
		}
		products, err := scylla.ProductsSession()
		if err != nil {
			scylla.Close()
			return nil, nil, err
		}
		orders, err := scylla.OrdersSession()
		if err != nil {
			scylla.Close()
			return nil, nil, err
		}
		users, err := scylla.UsersSession()
		if err != nil {
			scylla.Close()
			return nil, nil, err
		}
		store := &repository.Store{
			Products:   repository.NewScyllaProductStore(products, orders),
			Categories: repository.NewScyllaCategoryStore(products),
			Orders:     repository.NewScyllaOrderStore(orders),
			Payments:   repository.NewScyllaPaymentStore(orders),
			Users:      repository.NewScyllaUserStore(users),
		}
		return store, scylla.Close, nil
	}
}
