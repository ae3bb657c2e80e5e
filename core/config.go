package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                string // DEV (local; default), TEST, QA, PROD
		Build              string
		Debug              bool
		TestMode           bool
		WorkDir            string
		AppName            string
		SecretKey          string
		FrontendBaseURL    string
		StudentEmailDomain string
		SendgridApiKey     string
		RollbarToken       string
		defaultFromEmail   string

		Server   ServerConfig
		Database DatabaseConfig
		Upload   UploadConfig
		Redis    RedisConfig
		Homework HomeworkConfig
		Student  StudentConfig
		Client   ClientConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		AllowedOrigins            []string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	UploadConfig struct {
		Backend          string // disk | b2
		Dir              string
		BaseURL          string
		B2AccountID      string
		B2AppKey         string
		B2Bucket         string
		HomeworkMaxBytes int64
		HomeworkTypes    []string
		PDFMaxBytes      int64
		ImageMaxBytes    int64
		ImageTypes       []string
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	HomeworkConfig struct {
		// RestrictEnrollment only lets students submit to (and list) assignments of courses they are enrolled in.
		RestrictEnrollment bool
	}

	StudentConfig struct {
		DefaultDepartment   string
		DefaultSemester     string
		DefaultAcademicYear string
		MinPasswordLength   int
	}

	// ClientConfig is read by the portal CLI, not by the API server.
	ClientConfig struct {
		APIBaseURL  string
		SessionFile string // defaults to <user config dir>/academic/session.db
		Timeout     time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("workDir", wd)
	v.SetDefault("appName", "Academic")
	v.SetDefault("secretKey", "k2v$0b7n!x(4wd&s9z=ra+q8h3)1u#mc6e^yj@lpt5f-go")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("studentEmailDomain", "ogrenci.karabuk.edu.tr")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "academic")
	v.SetDefault("database.user", "academic")
	v.SetDefault("database.password", "academic")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("upload.backend", "disk")
	v.SetDefault("upload.dir", filepath.Join(wd, "uploads"))
	v.SetDefault("upload.baseURL", "http://localhost:8000/api/files")
	v.SetDefault("upload.b2AccountID", "")
	v.SetDefault("upload.b2AppKey", "")
	v.SetDefault("upload.b2Bucket", "")
	v.SetDefault("upload.homeworkMaxBytes", int64(3<<20))
	v.SetDefault("upload.homeworkTypes", []string{"application/pdf"})
	v.SetDefault("upload.pdfMaxBytes", int64(10<<20))
	v.SetDefault("upload.imageMaxBytes", int64(5<<20))
	v.SetDefault("upload.imageTypes", []string{"image/jpeg", "image/jpg", "image/png", "image/webp"})

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("homework.restrictEnrollment", true)

	v.SetDefault("student.defaultDepartment", "Mekatronik Mühendisliği")
	v.SetDefault("student.defaultSemester", "Güz")
	v.SetDefault("student.defaultAcademicYear", "2024-2025")
	v.SetDefault("student.minPasswordLength", 6)

	v.SetDefault("client.apiBaseURL", "http://localhost:8000/api")
	v.SetDefault("client.sessionFile", "")
	v.SetDefault("client.timeout", 30*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("debug", false)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                env,
		Build:              v.GetString("build"),
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		WorkDir:            v.GetString("workDir"),
		AppName:            v.GetString("appName"),
		SecretKey:          v.GetString("secretKey"),
		FrontendBaseURL:    v.GetString("frontendBaseURL"),
		StudentEmailDomain: v.GetString("studentEmailDomain"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		defaultFromEmail:   v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugAddress:              v.GetString("server.debugAddress"),
			AllowedOrigins:            v.GetStringSlice("server.allowedOrigins"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Upload: UploadConfig{
			Backend:          v.GetString("upload.backend"),
			Dir:              v.GetString("upload.dir"),
			BaseURL:          strings.TrimRight(v.GetString("upload.baseURL"), "/"),
			B2AccountID:      v.GetString("upload.b2AccountID"),
			B2AppKey:         v.GetString("upload.b2AppKey"),
			B2Bucket:         v.GetString("upload.b2Bucket"),
			HomeworkMaxBytes: v.GetInt64("upload.homeworkMaxBytes"),
			HomeworkTypes:    v.GetStringSlice("upload.homeworkTypes"),
			PDFMaxBytes:      v.GetInt64("upload.pdfMaxBytes"),
			ImageMaxBytes:    v.GetInt64("upload.imageMaxBytes"),
			ImageTypes:       v.GetStringSlice("upload.imageTypes"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Homework: HomeworkConfig{
			RestrictEnrollment: v.GetBool("homework.restrictEnrollment"),
		},
		Student: StudentConfig{
			DefaultDepartment:   v.GetString("student.defaultDepartment"),
			DefaultSemester:     v.GetString("student.defaultSemester"),
			DefaultAcademicYear: v.GetString("student.defaultAcademicYear"),
			MinPasswordLength:   v.GetInt("student.minPasswordLength"),
		},
		Client: ClientConfig{
			APIBaseURL:  strings.TrimRight(v.GetString("client.apiBaseURL"), "/"),
			SessionFile: v.GetString("client.sessionFile"),
			Timeout:     v.GetDuration("client.timeout"),
		},
	}
}
