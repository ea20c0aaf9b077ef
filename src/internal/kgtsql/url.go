package kgtsql

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
)

// URL contains the information needed to connect to a SQL database, except
// for the password.
type URL struct {
	Protocol string
	User     string
	Host     string
	Port     uint16
	Database string
	Params   map[string]string
}

// ParseURL attempts to parse x into a URL.
func ParseURL(x string) (*URL, error) {
	u, err := url.Parse(x)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		switch u.Scheme {
		case ProtocolMySQL:
			port = 3306
		case ProtocolPostgres, "postgresql":
			port = 5432
		default:
			return nil, errors.Errorf("database protocol %q not supported", u.Scheme)
		}
	}
	if port < 1 || port > 65535 {
		return nil, errors.Errorf("port %d out of range", port)
	}
	params := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			params[k] = v[len(v)-1]
		}
	}
	return &URL{
		Protocol: u.Scheme,
		Host:     u.Hostname(),
		Port:     uint16(port),
		User:     u.User.Username(),
		Database: strings.Trim(u.Path, "/"),
		Params:   params,
	}, nil
}

// String renders u without any password, so it is safe to log.
func (u *URL) String() string {
	return (&url.URL{
		Scheme: u.Protocol,
		Host:   u.Host,
		User:   url.User(u.User),
		Path:   u.Database,
	}).String()
}
