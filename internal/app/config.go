package app

import "os"

// Config описывает минимальные настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес REST API.
	HTTPAddr string
	// MetricsAddr — адрес служебного HTTP: метрики и health-пробы.
	MetricsAddr string
	// PostgresDSN — строка подключения к PostgreSQL; пустая строка
	// включает in-memory хранилище.
	PostgresDSN string
}

// DefaultConfig возвращает базовые адреса для API и служебного HTTP.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}

// ReadConfig формирует конфигурацию, позволяя переопределить значения
// через переменные окружения.
func ReadConfig() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("INVOICE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("INVOICE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("INVOICE_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	return cfg
}
