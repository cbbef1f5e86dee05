package rates

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedBody = `{
	"Valute": {
		"EUR": {"Nominal": 1, "Value": 94.04},
		"KRW": {"Nominal": 1000, "Value": 60.58}
	}
}`

func TestUpdateSwapsSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	Init(0.05, 90)
	require.NoError(t, Update(server.URL))

	snap := Current()
	assert.InDelta(t, 0.06058, snap.KRW, 1e-9)
	assert.InDelta(t, 94.04, snap.EUR, 1e-9)
}

func TestUpdateKeepsSnapshotOnDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	Init(0.06, 94)
	require.Error(t, Update(server.URL))

	snap := Current()
	assert.Equal(t, Snapshot{KRW: 0.06, EUR: 94}, snap)
}

func TestUpdateKeepsSnapshotOnMissingQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Valute": {"USD": {"Nominal": 1, "Value": 80}}}`))
	}))
	defer server.Close()

	Init(0.06, 94)
	require.NoError(t, Update(server.URL))

	snap := Current()
	assert.Equal(t, Snapshot{KRW: 0.06, EUR: 94}, snap)
}
