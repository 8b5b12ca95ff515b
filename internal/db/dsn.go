package db

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"db_schema_migrator/internal/config"
	"db_schema_migrator/internal/dialect"
)

// DSN renders the driver-specific data source name for cfg.
func DSN(d dialect.Dialect, cfg config.DBConfig) (string, error) {
	switch d.(type) {
	case dialect.SQLite:
		return sqliteDSN(cfg), nil
	case dialect.Postgres:
		return postgresDSN(cfg), nil
	case dialect.MariaDB:
		return mariadbDSN(cfg)
	}
	return "", fmt.Errorf("%w: %s", dialect.ErrUnknownDialect, d.Name())
}

func sqliteDSN(cfg config.DBConfig) string {
	path := cfg.Name
	if cfg.URL != "" {
		path = cfg.URL
		for _, prefix := range []string{"sqlite3://", "sqlite://"} {
			path = strings.TrimPrefix(path, prefix)
		}
	}
	if strings.HasPrefix(path, "file:") && strings.Contains(path, "?") {
		return path
	}
	params := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	for _, k := range sortedKeys(cfg.Params) {
		params = append(params, k+"="+cfg.Params[k])
	}
	return "file:" + strings.TrimPrefix(path, "file:") + "?" + strings.Join(params, "&")
}

func postgresDSN(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func mariadbDSN(cfg config.DBConfig) (string, error) {
	var mc *mysql.Config
	switch {
	case strings.HasPrefix(cfg.URL, "mysql://"), strings.HasPrefix(cfg.URL, "mariadb://"):
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("invalid mariadb url: %w", err)
		}
		mc = mysql.NewConfig()
		mc.User = u.User.Username()
		mc.Passwd, _ = u.User.Password()
		mc.Net = "tcp"
		mc.Addr = u.Host
		if u.Port() == "" {
			mc.Addr = net.JoinHostPort(u.Hostname(), "3306")
		}
		mc.DBName = strings.TrimPrefix(u.Path, "/")
		for k, v := range u.Query() {
			if len(v) > 0 {
				setParam(mc, k, v[0])
			}
		}
	case cfg.URL != "":
		// Validate DSN early to provide actionable errors.
		parsed, err := mysql.ParseDSN(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		mc = parsed
	default:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		mc = mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		mc.DBName = cfg.Name
	}
	mc.AllowNativePasswords = true
	mc.ParseTime = true
	for k, v := range cfg.Params {
		setParam(mc, k, v)
	}
	return mc.FormatDSN(), nil
}

func setParam(mc *mysql.Config, key, value string) {
	if key == "parseTime" {
		return
	}
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	mc.Params[key] = value
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
