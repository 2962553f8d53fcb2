package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/medsage/medsage-server/internal/store"
	"github.com/medsage/medsage-server/internal/store/storetest"
)

func makeMongoStore(t *testing.T) store.Store {
	t.Helper()
	uri := os.Getenv("CONSULT_BACKEND_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CONSULT_BACKEND_TEST_MONGO_URI not set; skipping mongo store integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Open(ctx, uri)
	if err != nil {
		t.Fatalf("mongo open: %v", err)
	}
	dbName := fmt.Sprintf("medsage_test_%d", time.Now().UnixNano())
	db := client.Database(dbName)
	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return New(db)
}

func TestMongoStore_Compliance(t *testing.T) {
	storetest.Run(t, makeMongoStore)
}
