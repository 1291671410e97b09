package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/config"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/ifttt"
	"github.com/edgard/kakeibo/internal/telegram"
)

// blankEnv hides credentials of the host environment from config.Load.
func blankEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SLACK_CHANNEL_ID", "SLACK_TOKEN", "IFTTT_EVENT_NAME", "IFTTT_WEBHOOK_TOKEN",
		"KAKEIBO_SLACK_CHANNEL_ID", "KAKEIBO_SLACK_TOKEN", "KAKEIBO_SLACK_BASE_URL",
		"KAKEIBO_IFTTT_EVENT_NAME", "KAKEIBO_IFTTT_TOKEN", "KAKEIBO_IFTTT_BASE_URL",
		"KAKEIBO_NOTIFY_SINK", "KAKEIBO_DATABASE_PATH", "KAKEIBO_FILTER_EXCLUDE_MINUTES",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestRunOnceRelaysRecentMessages(t *testing.T) {
	blankEnv(t)

	now := time.Now().Unix()
	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprintf(w, `{"ok":true,"messages":[{"ts":"%d.000200","text":"newest"},{"ts":"%d.000100","text":"older"},{"ts":"%d.000000","text":"stale"}]}`,
			now, now-60, now-3600)
	}))
	defer slackSrv.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	iftttSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		_ = json.Unmarshal(body, &payload)
		mu.Lock()
		got = append(got, payload["value2"])
		mu.Unlock()
	}))
	defer iftttSrv.Close()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	path := writeConfig(t, fmt.Sprintf(`
slack:
  base_url: %s
  channel_id: C0123
  token: xoxb-token
filter:
  exclude_minutes: 10
ifttt:
  base_url: %s/trigger
  event_name: kakeibo
  token: secret
database:
  path: %s
`, slackSrv.URL, iftttSrv.URL, dbPath))

	if code := run(context.Background(), []string{"-config", path}); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"older", "newest"}; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("webhook saw %v, want %v", got, want)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("journal not created: %v", err)
	}
	if code := run(context.Background(), []string{"-config", path, "-runs", "5"}); code != 0 {
		t.Errorf("run(-runs) = %d, want 0", code)
	}
}

func TestRunOnceFetchFailure(t *testing.T) {
	blankEnv(t)

	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer slackSrv.Close()

	path := writeConfig(t, fmt.Sprintf(`
slack:
  base_url: %s
  channel_id: C0123
  token: xoxb-token
ifttt:
  event_name: kakeibo
  token: secret
`, slackSrv.URL))

	if code := run(context.Background(), []string{"-config", path}); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestRunExitCodes(t *testing.T) {
	blankEnv(t)

	if code := run(context.Background(), []string{"-no-such-flag"}); code != 2 {
		t.Errorf("bad flag: run() = %d, want 2", code)
	}
	if code := run(context.Background(), []string{"-config", writeConfig(t, "slack: {}\n")}); code != 1 {
		t.Errorf("missing credentials: run() = %d, want 1", code)
	}

	noJournal := writeConfig(t, `
slack:
  channel_id: C0123
  token: xoxb-token
ifttt:
  event_name: kakeibo
  token: secret
`)
	if code := run(context.Background(), []string{"-config", noJournal, "-runs", "3"}); code != 1 {
		t.Errorf("-runs without journal: run() = %d, want 1", code)
	}
}

func TestBuildNotifier(t *testing.T) {
	t.Parallel()

	base := config.Config{Notify: config.NotifyConfig{Timeout: time.Second}}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		check   func(t *testing.T, n any)
		wantErr string
	}{
		{
			name:   "ifttt",
			mutate: func(c *config.Config) { c.Notify.Sink = config.SinkIFTTT },
			check: func(t *testing.T, n any) {
				if _, ok := n.(*ifttt.Client); !ok {
					t.Errorf("notifier = %T, want *ifttt.Client", n)
				}
			},
		},
		{
			name: "telegram",
			mutate: func(c *config.Config) {
				c.Notify.Sink = config.SinkTelegram
				c.Telegram = config.TelegramConfig{Token: "123:abc", ChatID: "-1001"}
			},
			check: func(t *testing.T, n any) {
				if _, ok := n.(*telegram.Notifier); !ok {
					t.Errorf("notifier = %T, want *telegram.Notifier", n)
				}
			},
		},
		{
			name: "telegram without token",
			mutate: func(c *config.Config) {
				c.Notify.Sink = config.SinkTelegram
			},
			wantErr: errs.CodeConfig,
		},
		{
			name:    "unknown sink",
			mutate:  func(c *config.Config) { c.Notify.Sink = "pager" },
			wantErr: errs.CodeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			tt.mutate(&cfg)

			n, err := buildNotifier(&cfg, zerolog.Nop())
			if tt.wantErr != "" {
				if errs.Code(err) != tt.wantErr || n != nil {
					t.Errorf("buildNotifier() = %v, %v; want %s error", n, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildNotifier() error = %v", err)
			}
			tt.check(t, n)
		})
	}
}
