package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/opnet-core/indexer/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Network.Chain != "mainnet" {
		t.Fatalf("unexpected chain: %s", AppConfig.Network.Chain)
	}
	if AppConfig.Indexing.ReorgDepth != 6 {
		t.Fatalf("unexpected reorg depth: %d", AppConfig.Indexing.ReorgDepth)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Network.Chain != "testnet" {
		t.Fatalf("expected chain testnet, got %s", AppConfig.Network.Chain)
	}
	if AppConfig.Indexing.PendingBlockThreshold != 100 {
		t.Fatalf("expected pending block threshold 100")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("network:\n  chain: regtest\nindexing:\n  purge_window: 42\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Network.Chain != "regtest" {
		t.Fatalf("expected chain regtest, got %s", AppConfig.Network.Chain)
	}
	if AppConfig.Indexing.PurgeWindow != 42 {
		t.Fatalf("expected purge window 42, got %d", AppConfig.Indexing.PurgeWindow)
	}
}
