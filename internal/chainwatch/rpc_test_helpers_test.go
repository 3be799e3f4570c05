package chainwatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/opnet-core/indexer/internal/rpcclient"
)

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSONResult(w http.ResponseWriter, id uint64, rawResult string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"jsonrpc":"1.0","id":%d,"result":%s,"error":null}`, id, rawResult)
}

func newTestRPCClient(t *testing.T, serverURL string) *rpcclient.Client {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	c, err := rpcclient.New(rpcclient.Config{Host: u.Hostname(), Port: port, Network: rpcclient.NetworkRegtest}, nil)
	if err != nil {
		t.Fatalf("new rpc client: %v", err)
	}
	return c
}
