package postgres

import (
	"testing"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		opts     domain.ListOpts
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "no options",
			wantSQL: "SELECT * FROM t WHERE 1=1 ORDER BY id ASC",
		},
		{
			name:     "since and limit",
			opts:     domain.ListOpts{Since: &since, Limit: 10},
			wantSQL:  "SELECT * FROM t WHERE 1=1 AND ts >= $1 ORDER BY id ASC LIMIT $2",
			wantArgs: 2,
		},
		{
			name:     "limit and offset",
			opts:     domain.ListOpts{Limit: 5, Offset: 20},
			wantSQL:  "SELECT * FROM t WHERE 1=1 ORDER BY id ASC LIMIT $1 OFFSET $2",
			wantArgs: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listQuery("SELECT * FROM t WHERE 1=1", "ts", "id ASC", tt.opts)
			if q != tt.wantSQL {
				t.Errorf("query = %q, want %q", q, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %v, want %d", args, tt.wantArgs)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "optiprice"})
	want := "postgres://u:p@db:5432/optiprice?sslmode=disable"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}); got != "postgres://x" {
		t.Errorf("explicit DSN = %q", got)
	}
}
