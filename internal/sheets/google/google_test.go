package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the Sheets v4 API the client uses,
// backed by an in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	batches int
}

var rowRange = regexp.MustCompile(`A(\d+):H\d+$`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		values := make([][]any, len(f.rows))
		for i, row := range f.rows {
			values[i] = row[:min(2, len(row))]
		}
		writeJSON(w, gsheet.ValueRange{Values: values})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		writeJSON(w, map[string]any{})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		m := rowRange.FindStringSubmatch(path)
		if m == nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		n, _ := strconv.Atoi(m[1])
		f.rows[n-1] = vr.Values[0]
		writeJSON(w, map[string]any{})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			idx := rq.DeleteDimension.Range.StartIndex
			f.rows = append(f.rows[:idx], f.rows[idx+1:]...)
		}
		f.batches++
		writeJSON(w, map[string]any{})

	case r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"sheets": []any{map[string]any{"properties": map[string]any{"sheetId": 0, "title": DefaultSheetName}}},
		})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, toStrings(row)[0])
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{rows: [][]any{{"ID", "User"}}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := newClient(context.Background(), Config{SpreadsheetID: "sheet-1"}, log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, fake
}

func txn(id, user string) core.Transaction {
	return core.Transaction{
		ID:          id,
		UserID:      user,
		Type:        core.Expense,
		Amount:      core.Money{Cents: 1000},
		Description: "lunch",
		Category:    "Food",
		Date:        core.NewDate(2024, 1, 2),
	}
}

func TestNewClient_MissingSpreadsheetID(t *testing.T) {
	_, err := newClient(context.Background(), Config{}, log.Discard())
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := credentials(Config{})
	assert.Error(t, err, "no credentials configured")

	got, err := credentials(Config{CredentialsJSON: ` {"type":"service_account"} `})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(got))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))
	got, err = credentials(Config{CredentialsFile: path})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(got))

	_, err = credentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err, "unreadable file")
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	assert.Error(t, c.AppendTransaction(context.Background(), txn("t1", "alice")))
	_, err := c.DeleteUser(context.Background(), "alice")
	assert.Error(t, err)
}

func TestClient_MirrorLifecycle(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for _, tx := range []core.Transaction{txn("t1", "alice"), txn("t2", "bob"), txn("t3", "alice")} {
		require.NoError(t, c.AppendTransaction(ctx, tx), "AppendTransaction(%s)", tx.ID)
	}
	// Redelivery must not duplicate the row.
	require.NoError(t, c.AppendTransaction(ctx, txn("t1", "alice")))
	require.Equal(t, "ID,t1,t2,t3", strings.Join(fake.ids(), ","))

	updated := txn("t2", "bob")
	updated.Amount = core.Money{Cents: 2500}
	require.NoError(t, c.UpdateTransaction(ctx, updated))
	assert.Equal(t, "25.00", toStrings(fake.rows[2])[4])

	require.NoError(t, c.UpdateTransaction(ctx, txn("t9", "bob")), "update of missing row")
	require.Equal(t, "ID,t1,t2,t3,t9", strings.Join(fake.ids(), ","), "update of missing row should append")

	require.NoError(t, c.DeleteTransaction(ctx, "t9"))
	require.NoError(t, c.DeleteTransaction(ctx, "t9"), "delete of missing row")

	n, err := c.DeleteUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ID,t2", strings.Join(fake.ids(), ","))
	assert.Equal(t, 2, fake.batches)
}
