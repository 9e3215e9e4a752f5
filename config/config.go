package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/canteen/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Env string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	AdminEmail    string
	AdminPassword string

	JWTSecret string
	QRSecret  string

	Server    ServerConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Wallet    WalletConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    float64
	RateBurst    int
	UploadDir    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
}

type WalletConfig struct {
	MinTopUp decimal.Decimal
}

type SchedulerConfig struct {
	Location         *time.Location
	AutoResetEnabled bool
}

func LoadConfig() (*Config, error) {
	loc, err := time.LoadLocation(getEnv("CANTEEN_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid CANTEEN_TIMEZONE: %w", err)
	}

	minTopUp, err := decimal.NewFromString(getEnv("WALLET_MIN_TOPUP", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_MIN_TOPUP: %w", err)
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		QRSecret:  os.Getenv("QR_SECRET"),

		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RateLimit:    getFloat("RATE_LIMIT_RPS", 50),
			RateBurst:    getInt("RATE_LIMIT_BURST", 100),
			UploadDir:    getEnv("UPLOAD_DIR", "./uploads/"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
		},
		Wallet: WalletConfig{
			MinTopUp: minTopUp,
		},
		Scheduler: SchedulerConfig{
			Location:         loc,
			AutoResetEnabled: getEnv("AUTO_RESET_DAILY_COUNTS", "true") == "true",
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.QRSecret == "" {
		return nil, fmt.Errorf("QR_SECRET is required")
	}
	if cfg.QRSecret == cfg.JWTSecret {
		return nil, fmt.Errorf("QR_SECRET must differ from JWT_SECRET")
	}

	return cfg, nil
}

type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

func LoadGatewayConfig() (*GatewayConfig, error) {
	cfg := &GatewayConfig{
		BaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		KeyID:     os.Getenv("GATEWAY_KEY_ID"),
		KeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		Currency:  getEnv("GATEWAY_CURRENCY", "INR"),
		Timeout:   getDuration("GATEWAY_TIMEOUT", 15*time.Second),
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required")
	}
	return cfg, nil
}

func dialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
		)
		return mysql.New(mysql.Config{DSN: dsn, DefaultStringSize: 191}), nil
	case "sqlite":
		// DB_NAME is the database file; handy for local runs without a server
		return sqlite.Open(cfg.DBName), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// GormConfig is shared by the server and the test database so that timestamps
// and error translation behave the same everywhere.
func GormConfig(env string) *gorm.Config {
	level := gormlogger.Silent
	if env == "development" {
		level = gormlogger.Warn
	}
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
}

func InitDatabase(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, GormConfig(cfg.Env))
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := SeedRoles(db); err != nil {
		return nil, err
	}

	if err := seedAdmin(db, cfg, log); err != nil {
		return nil, err
	}

	return db, nil
}

// Models lists every migrated table. Column types stay portable across the
// postgres, mysql and sqlite dialectors.
func Models() []interface{} {
	return []interface{}{
		&models.Role{},
		&models.User{},
		&models.Meal{},
		&models.Booking{},
		&models.WalletTransaction{},
		&models.TopUpOrder{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func SeedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleStudent, models.RoleAdmin} {
		role := models.Role{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

func seedAdmin(db *gorm.DB, cfg *Config, log *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", cfg.AdminEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var role models.Role
	if err := db.Where("name = ?", models.RoleAdmin).First(&role).Error; err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:     "Administrator",
		Email:    cfg.AdminEmail,
		Password: string(hashed),
		RoleID:   role.ID,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Info("seeded admin account", zap.String("email", admin.Email))
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
