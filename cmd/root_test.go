package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"disasterwatch/internal/infrastructure/persistence/model"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "init-db": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}

	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil || flag.DefValue != "configs/config.yaml" {
		t.Fatalf("config flag = %+v", flag)
	}
}

func TestInitDBCreatesSchema(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "data", "dw.sqlite")
	t.Setenv("DW_DATABASE_DSN", dsn)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"init-db", "--config", filepath.Join(dir, "missing.yaml")})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	if err := Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "database schema initialized: sqlite") {
		t.Fatalf("output = %q", out.String())
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, table := range model.All() {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table for %T missing", table)
		}
	}
}
