package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	database "github.com/kamilszcz/StockMarket/db"
	"github.com/kamilszcz/StockMarket/internal/auth"
	"github.com/kamilszcz/StockMarket/internal/ledger"
	"github.com/kamilszcz/StockMarket/internal/portfolio"
	"github.com/kamilszcz/StockMarket/internal/quote"
	"github.com/kamilszcz/StockMarket/internal/trading"
	"github.com/kamilszcz/StockMarket/internal/user"
)

type Response struct {
	Message string `json:"message"`
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("Started %s %s", r.Method, r.URL.Path)

		next.ServeHTTP(w, r)

		log.Printf("Completed %s in %v", r.URL.Path, time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	})
}

type Server struct {
	router           *http.ServeMux
	dbService        *database.DBService
	authHandler      *auth.Handler
	authService      auth.Service
	userHandler      *user.Handler
	quoteHandler     *quote.Handler
	tradingHandler   *trading.Handler
	portfolioHandler *portfolio.Handler
}

func NewServer(
	dbService *database.DBService,
	authHandler *auth.Handler,
	authService auth.Service,
	userHandler *user.Handler,
	quoteHandler *quote.Handler,
	tradingHandler *trading.Handler,
	portfolioHandler *portfolio.Handler,
) *Server {
	return &Server{
		router:           http.NewServeMux(),
		dbService:        dbService,
		authHandler:      authHandler,
		authService:      authService,
		userHandler:      userHandler,
		quoteHandler:     quoteHandler,
		tradingHandler:   tradingHandler,
		portfolioHandler: portfolioHandler,
	}
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(Response{Message: "Path not found"})
}

func checkConfiguration() error {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, continuing with system environment variables")
	}

	if os.Getenv("JWT_SECRET") == "" {
		return errors.New("no JWT_SECRET Provided")
	}
	if os.Getenv("MARKET_DATA_API_KEY") == "" {
		return errors.New("no MARKET_DATA_API_KEY Provided")
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	stats := s.dbService.Health()

	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, stats)
}

func (s *Server) RegisterRoutes() {
	// Public routes
	publicRoutes := http.NewServeMux()
	publicRoutes.Handle("POST /api/register", http.HandlerFunc(s.userHandler.HandleRegister))
	publicRoutes.Handle("POST /api/auth/login", http.HandlerFunc(s.authHandler.HandleLogin))
	publicRoutes.Handle("POST /api/auth/logout", http.HandlerFunc(s.authHandler.HandleLogout))
	publicRoutes.Handle("GET /api/ready", http.HandlerFunc(s.handleReady))

	// Protected routes (using JWT Access Token Middleware)
	protectedRoutes := http.NewServeMux()
	protectedRoutes.Handle("GET /api/protected/profile",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.userHandler.HandleGetUserProfile)))

	protectedRoutes.Handle("GET /api/protected/quote/{symbol}",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.quoteHandler.HandleGetQuote)))

	protectedRoutes.Handle("POST /api/protected/buy",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.tradingHandler.HandleBuy)))

	protectedRoutes.Handle("POST /api/protected/sell",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.tradingHandler.HandleSell)))

	protectedRoutes.Handle("POST /api/protected/balance",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.tradingHandler.HandleAddBalance)))

	protectedRoutes.Handle("GET /api/protected/history",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.tradingHandler.HandleGetHistory)))

	protectedRoutes.Handle("GET /api/protected/portfolio",
		s.authService.JWTAccessTokenMiddleware()(http.HandlerFunc(s.portfolioHandler.HandleGetPortfolio)))

	// Refresh token routes
	refreshTokenRoutes := http.NewServeMux()
	refreshTokenRoutes.Handle("PUT /api/refresh/token", s.authService.JWTRefreshTokenMiddleware()(http.HandlerFunc(s.authHandler.RefreshAccessToken)))

	// Main router
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/api/", publicRoutes)
	mainRouter.Handle("/api/protected/", protectedRoutes)
	mainRouter.Handle("/api/refresh/", refreshTokenRoutes)
	mainRouter.Handle("/", http.HandlerFunc(notFoundHandler))

	s.router = mainRouter
}

// StartQuoteRefreshScheduler keeps cached quotes warm so the portfolio page
// does not pay one upstream round trip per held symbol on every view.
func StartQuoteRefreshScheduler(cachedQuotes *quote.CachedClient) error {
	c := cron.New()
	_, err := c.AddFunc("@every 5m", func() {
		if err := cachedQuotes.RefreshAll(context.Background()); err != nil {
			log.Printf("Error refreshing quote cache: %v", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	return nil
}

func main() {
	if err := checkConfiguration(); err != nil {
		log.Fatalf("Missing configuration, update to start server: %v", err)
	}

	dbService, err := database.NewDBService()
	if err != nil {
		log.Fatalf("Could not initialize database: %v", err)
	}
	defer dbService.Close()

	apiKey := os.Getenv("MARKET_DATA_API_KEY")
	iexClient := quote.NewIEXClient(apiKey, os.Getenv("MARKET_DATA_BASE_URL"))
	cachedQuotes := quote.NewCachedClient(iexClient, time.Minute)

	userRepo := user.NewUserRepository(dbService.DB)
	userService := user.NewUserService(userRepo)
	userHandler := user.NewHandler(userService)

	jwtManager := auth.NewJWTManager()
	authService := auth.NewAuthService(userService, jwtManager)
	authHandler := auth.NewHandler(authService)

	ledgerRepo := ledger.NewLedgerRepository(dbService.DB)

	// Trades look up prices through the live client; only display paths
	// read from the cache.
	tradeService := trading.NewTradeService(ledgerRepo, iexClient)
	tradingHandler := trading.NewHandler(tradeService, respondJSON, respondError)

	portfolioService := portfolio.NewPortfolioService(ledgerRepo, cachedQuotes)
	portfolioHandler := portfolio.NewHandler(portfolioService, respondJSON, respondError)

	quoteHandler := quote.NewHandler(cachedQuotes, respondJSON, respondError)

	server := NewServer(dbService, authHandler, authService, userHandler, quoteHandler, tradingHandler, portfolioHandler)
	server.RegisterRoutes()

	if err := StartQuoteRefreshScheduler(cachedQuotes); err != nil {
		log.Fatalf("Scheduler didn't start, stoping the app ...")
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(server.router)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("Server starting on %s...", addr)
	if err := http.ListenAndServe(addr, loggingMiddleware(corsHandler)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
