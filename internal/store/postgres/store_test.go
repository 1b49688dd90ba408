package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestOpen_skipIfNoDatabaseURL(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres test")
	}
	st, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	tags, err := st.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	_ = tags

	email := fmt.Sprintf("pgtest-%d@example.com", time.Now().UnixNano())
	uid, err := st.CreateUser(ctx, "PG Test", email, "x", "admin")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := st.GetUserByID(ctx, uid)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.Email != email {
		t.Fatalf("unexpected user: %+v", u)
	}
}
