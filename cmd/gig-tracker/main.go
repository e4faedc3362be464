package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/gig-tracker/internal/expense"
	"github.com/zombor/gig-tracker/internal/extraction"
	"github.com/zombor/gig-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("gig-tracker")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "gig-tracker.db", "Database file path")
		storagePath  = fs.StringLong("storage", "./receipts", "Storage directory path")
		scannerType  = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'tesseract'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		tessBinary   = fs.StringLong("tesseract-binary", "tesseract", "Path to the tesseract binary")
		tessLang     = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		tessPSM      = fs.IntLong("tesseract-psm", 4, "Tesseract page segmentation mode")
		tessdataDir  = fs.StringLong("tesseract-tessdata", "", "Tesseract tessdata directory (optional)")
		tessTimeout  = fs.DurationLong("tesseract-timeout", 60*time.Second, "Tesseract timeout per receipt")
		tolerance    = fs.StringLong("tolerance", "0.005", "Largest accepted |price*quantity - amount|")
		amountPolicy = fs.StringLong("amount-policy", "repeated-first", "Fallback amount policy: 'repeated-first', 'repeated-largest' or 'largest'")
		priceBandMin = fs.StringLong("price-band-min", "1.000", "Lower bound of a plausible unit price")
		priceBandMax = fs.StringLong("price-band-max", "9.999", "Upper bound of a plausible unit price")
		distinct     = fs.BoolLong("distinct-price-quantity", "Never use one printed number as both unit price and quantity")
		pruneAfter   = fs.DurationLong("prune-after", 24*time.Hour, "Delete scanned receipts never saved as an expense after this long (0 disables)")
		debug        = fs.BoolLong("debug", "Log extraction stages")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("GIG_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	engineCfg, err := engineConfig(*tolerance, *amountPolicy, *priceBandMin, *priceBandMax)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	engineCfg.DistinctPriceAndQuantity = *distinct
	engine := extraction.NewEngine(engineCfg, extraction.WithLogger(slog.Default()))

	// Initialize database
	slog.Info("Initializing database...")
	db, err := expense.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "tesseract":
		slog.Info("Initializing Tesseract scanner...", "binary", *tessBinary, "lang", *tessLang, "psm", *tessPSM)
		scanner, err = scanning.NewTesseract(scanning.TesseractConfig{
			Binary:      *tessBinary,
			Lang:        *tessLang,
			PSM:         *tessPSM,
			TessdataDir: *tessdataDir,
			Timeout:     *tessTimeout,
		})
		if err != nil {
			slog.Error("Failed to initialize Tesseract", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or tesseract")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := expense.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	expenseService := expense.NewService(db, scanner, store, engine)

	basicAuth := expense.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := expense.NewServer(expenseService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	if *pruneAfter > 0 {
		go pruneLoop(expenseService, *pruneAfter)
	}

	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"tolerance", engineCfg.Tolerance.String(),
		"amount_policy", *amountPolicy,
	)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// pruneLoop removes abandoned scans once an hour
func pruneLoop(service *expense.Service, maxAge time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := service.PruneUnconfirmed(maxAge); err != nil {
			slog.Warn("Failed to prune unconfirmed receipts", "error", err)
		}
		<-ticker.C
	}
}

// engineConfig builds the extraction settings from their flag values
func engineConfig(tolerance, amountPolicy, bandMin, bandMax string) (extraction.Config, error) {
	tol, err := decimal.NewFromString(tolerance)
	if err != nil {
		return extraction.Config{}, fmt.Errorf("parsing tolerance: %w", err)
	}
	if !tol.IsPositive() {
		return extraction.Config{}, fmt.Errorf("tolerance must be positive, got %s", tolerance)
	}

	amounts, err := extraction.AmountPolicyByName(amountPolicy)
	if err != nil {
		return extraction.Config{}, err
	}

	band := extraction.PriceBand{}
	if band.Min, err = decimal.NewFromString(bandMin); err != nil {
		return extraction.Config{}, fmt.Errorf("parsing price band minimum: %w", err)
	}
	if band.Max, err = decimal.NewFromString(bandMax); err != nil {
		return extraction.Config{}, fmt.Errorf("parsing price band maximum: %w", err)
	}
	if band.Max.LessThan(band.Min) {
		return extraction.Config{}, fmt.Errorf("price band %s is empty", band)
	}

	return extraction.Config{
		Tolerance:       tol,
		AmountPolicy:    amounts,
		UnitPricePolicy: extraction.MarkedUnitPrice{Band: band},
	}, nil
}
