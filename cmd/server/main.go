package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/transcriptor/internal/cleanup"
	"github.com/codebuildervaibhav/transcriptor/internal/download"
	"github.com/codebuildervaibhav/transcriptor/internal/format"
	"github.com/codebuildervaibhav/transcriptor/internal/handlers"
	"github.com/codebuildervaibhav/transcriptor/internal/jobs"
	"github.com/codebuildervaibhav/transcriptor/internal/pipeline"
	"github.com/codebuildervaibhav/transcriptor/internal/storage"
	"github.com/codebuildervaibhav/transcriptor/internal/transcribe"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Lemonfox struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutMinutes int    `yaml:"timeout_minutes"`
	} `yaml:"lemonfox"`

	Downloader struct {
		YtdlpPath           string `yaml:"ytdlp_path"`
		ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds"`
	} `yaml:"downloader"`

	Storage struct {
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxBodySizeMB int `yaml:"max_body_size_mb"`
		MaxEventLog   int `yaml:"max_event_log"`
	} `yaml:"limits"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(config.Storage.OutputDir, 0755); err != nil {
		logrus.Fatalf("Failed to create output directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	log := logrus.New()
	log.SetOutput(io.MultiWriter(os.Stdout, logBuffer))
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// API key may come from the environment instead of the config file
	apiKey := config.Lemonfox.APIKey
	if envKey := os.Getenv("LEMONFOX_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		log.Fatal("No transcription API key configured (set lemonfox.api_key or LEMONFOX_API_KEY)")
	}

	// Initialize components
	log.Info("Initializing components...")

	transcriber := transcribe.NewClient(
		config.Lemonfox.BaseURL,
		time.Duration(config.Lemonfox.TimeoutMinutes)*time.Minute,
		log,
	)
	downloader := download.NewYtdlpDownloader(config.Downloader.YtdlpPath, log)
	prober := download.NewTitleProber(
		time.Duration(config.Downloader.ProbeTimeoutSeconds)*time.Second,
		log,
	)
	renderer := format.Renderer{}

	dirs := storage.NewJobDirs(config.Storage.OutputDir)

	// Database
	db, err := storage.NewMetadataDB(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warnf("Google Drive not available: %v", err)
			log.Info("Transcripts will only be saved locally")
			driveClient = nil
		} else {
			log.Info("Google Drive integration enabled")
		}
	} else {
		log.Info("Google Drive credentials not found - saving locally only")
	}

	runner := pipeline.NewRunner(downloader, transcriber, renderer, prober, log)

	maxEvents := config.Limits.MaxEventLog
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	store := jobs.NewStore()
	bus := jobs.NewEventBus(maxEvents)
	controller := jobs.NewController(store, bus, runner, dirs, apiKey, log, jobs.ControllerOptions{
		MetadataDB:  db,
		DriveClient: driveClient,
	})

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.OutputDir,
		config.Cleanup.IntervalMinutes,
		config.Cleanup.MaxAgeHours,
		log,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxBodySizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	jobHandler := handlers.NewJobHandler(controller, dirs)
	streamHandler := handlers.NewStreamHandler(bus, store, log)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/submit", jobHandler.Submit)
	app.Get("/status/:id", jobHandler.Status)
	app.Get("/result/:id", jobHandler.Result)
	app.Post("/cancel/:id", jobHandler.Cancel)
	app.Post("/retry/:id", jobHandler.Retry)
	app.Get("/download/:id/:filename", jobHandler.Download)

	// WebSocket route
	app.Get("/ws/jobs/:id", websocket.New(streamHandler.Handle))

	// Get finished job metadata
	app.Get("/transcripts", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		records, err := db.ListJobs(limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(records)
	})

	// Get transcript text for a finished job
	app.Get("/transcripts/:id/text", func(c *fiber.Ctx) error {
		jobID := c.Params("id")

		meta, err := db.GetJob(jobID)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript not found"})
		}

		var txtFile string
		for _, f := range meta.Files {
			if strings.HasSuffix(f, ".txt") {
				txtFile = f
				break
			}
		}
		if txtFile == "" {
			return c.Status(404).JSON(fiber.Map{"error": "No text transcript for this job"})
		}

		path, err := dirs.Resolve(jobID, txtFile)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript file path not found"})
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Failed to read transcript file"})
		}
		return c.SendString(string(content))
	})

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Infof("Server starting on %s", addr)
	log.Info("Endpoints:")
	log.Info("   POST /submit                 - Submit transcription job")
	log.Info("   GET  /status/:id             - Poll job status")
	log.Info("   GET  /result/:id             - Fetch job result")
	log.Info("   POST /cancel/:id             - Request cancellation")
	log.Info("   POST /retry/:id              - Retry a failed job")
	log.Info("   GET  /download/:id/:filename - Download an output file")
	log.Info("   GET  /ws/jobs/:id            - WebSocket status stream")
	log.Info("   GET  /transcripts            - List finished jobs")
	log.Info("   GET  /transcripts/:id/text   - Get transcript text")
	log.Info("   GET  /logs                   - View server logs")
	log.Info("   GET  /health                 - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	// Let in-flight jobs run to completion before exiting
	controller.Wait()
	log.Info("All jobs drained, goodbye")
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
