package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensectl/internal/core"
)

const testOAuthClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

// fakeSheets records the Values calls made against it.
type fakeSheets struct {
	mu      sync.Mutex
	calls   []string
	written [][]any
	fail    bool
}

func (f *fakeSheets) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"no access"}}`)
			return
		}

		path := r.URL.Path
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
			f.calls = append(f.calls, "clear "+rangeOf(path))
			_, _ = io.WriteString(w, `{}`)
		case r.Method == http.MethodPut:
			f.calls = append(f.calls, "update "+rangeOf(path)+" "+r.URL.Query().Get("valueInputOption"))
			var vr struct {
				Values [][]any `json:"values"`
			}
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				t.Errorf("decode update body: %v", err)
			}
			f.written = vr.Values
			_, _ = io.WriteString(w, `{}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func rangeOf(path string) string {
	i := strings.Index(path, "/values/")
	if i < 0 {
		return path
	}
	return strings.TrimSuffix(path[i+len("/values/"):], ":clear")
}

func newFakeClient(t *testing.T, sheetName string) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-id", sheetName, nil), fake
}

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{ID: 7, LocalID: 1, Description: "Lunch", Amount: decimal.RequireFromString("12.95"), Date: core.NewDate(2024, 11, 2)},
		{ID: 9, LocalID: 2, Description: "=1+1", Amount: decimal.RequireFromString("7.5"), Date: core.NewDate(2024, 11, 3)},
	}
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows(sampleExpenses())
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][4] != "Amount" {
		t.Errorf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[0] != int64(7) || first[1] != 1 || first[2] != "2024-11-02" || first[3] != "Lunch" || first[4] != 12.95 {
		t.Errorf("unexpected first row %v", first)
	}
	if rows[2][4] != 7.5 {
		t.Errorf("unexpected amount %v", rows[2][4])
	}

	if empty := BuildRows(nil); len(empty) != 1 {
		t.Errorf("empty list should still write the header, got %v", empty)
	}
}

func TestQuoteSheetName(t *testing.T) {
	tests := map[string]string{
		"Expenses":      "Expenses",
		"My Expenses":   "'My Expenses'",
		"Bob's":         "'Bob''s'",
		"expenses_2024": "expenses_2024",
	}
	for in, want := range tests {
		if got := quoteSheetName(in); got != want {
			t.Errorf("quoteSheetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExport(t *testing.T) {
	c, fake := newFakeClient(t, "")

	ref, err := c.Export(context.Background(), sampleExpenses())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if ref != "Expenses!A1:E3" {
		t.Errorf("ref = %q", ref)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected clear then update, got %v", fake.calls)
	}
	if fake.calls[0] != "clear Expenses!A:E" {
		t.Errorf("first call = %q", fake.calls[0])
	}
	if fake.calls[1] != "update Expenses!A1:E3 RAW" {
		t.Errorf("second call = %q", fake.calls[1])
	}
	if len(fake.written) != 3 || fake.written[2][3] != "=1+1" {
		t.Errorf("unexpected written rows %v", fake.written)
	}
}

func TestExport_Errors(t *testing.T) {
	c, fake := newFakeClient(t, "Expenses")
	fake.fail = true
	if _, err := c.Export(context.Background(), sampleExpenses()); err == nil || !strings.Contains(err.Error(), "clear") {
		t.Fatalf("expected clear error, got %v", err)
	}

	var nilSvc Client
	if _, err := nilSvc.Export(context.Background(), nil); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestNewFromConfig_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_Errors(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		creds   Credentials
		wantErr string
	}{
		{
			name:    "missing oauth client",
			creds:   Credentials{},
			wantErr: "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)",
		},
		{
			name:    "missing oauth token",
			creds:   Credentials{OAuthClientJSON: testOAuthClient},
			wantErr: "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)",
		},
		{
			name:    "invalid oauth client",
			creds:   Credentials{OAuthClientJSON: "invalid-json", OAuthTokenFile: tokenFile},
			wantErr: "oauth config",
		},
		{
			name:    "invalid oauth token",
			creds:   Credentials{OAuthClientJSON: testOAuthClient, OAuthTokenJSON: "{bad"},
			wantErr: "parse oauth token",
		},
		{
			name:    "missing service account file",
			creds:   Credentials{ServiceAccountFile: "/non/existent/sa.json"},
			wantErr: "read service account file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromConfig(context.Background(), Options{SpreadsheetID: "id", Credentials: tt.creds})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewFromConfig_OAuth(t *testing.T) {
	c, err := NewFromConfig(context.Background(), Options{
		SpreadsheetID: "id",
		Credentials:   Credentials{OAuthClientJSON: testOAuthClient, OAuthTokenJSON: `{"access_token":"test","token_type":"Bearer"}`},
	})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if c.sheetName != "Expenses" || c.spreadsheetID != "id" {
		t.Errorf("unexpected client %+v", c)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", " /tmp/adc.json ")
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", "token.json")

	creds := CredentialsFromEnv()
	if creds.ApplicationCredFile != "/tmp/adc.json" || creds.OAuthTokenFile != "token.json" {
		t.Errorf("unexpected credentials %+v", creds)
	}
	if !creds.hasServiceAccount() {
		t.Error("application default credentials count as a service account")
	}
}

func TestJsonUnmarshalIndirection(t *testing.T) {
	var token oauth2.Token
	if err := jsonUnmarshal([]byte(`{"access_token":"test","token_type":"Bearer"}`), &token); err != nil {
		t.Fatalf("jsonUnmarshal failed: %v", err)
	}
	if token.AccessToken != "test" {
		t.Errorf("expected access token 'test', got %s", token.AccessToken)
	}
	if err := jsonUnmarshal([]byte(`{invalid json}`), &token); err == nil {
		t.Fatal("expected error with invalid JSON")
	}
}
