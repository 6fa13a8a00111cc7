package dialect

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"unknown", DialectType("mysql"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantDriver string
		wantErr    bool
	}{
		{"sqlite", "sqlite", "sqlite", false},
		{"sqlite3", "sqlite", "sqlite", false},
		{"postgres", "postgres", "pgx", false},
		{"pgx", "postgres", "pgx", false},
		{"unknown", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
			if d.DriverName() != tt.wantDriver {
				t.Errorf("DriverName() = %v, want %v", d.DriverName(), tt.wantDriver)
			}
		})
	}
}

func TestSQLiteDialect_Rebind(t *testing.T) {
	d := &sqliteDialect{}
	query := "SELECT * FROM users WHERE id = ? AND name = ?"
	got := d.Rebind(query)
	if got != query {
		t.Errorf("Rebind() = %v, want %v", got, query)
	}
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := &postgresDialect{}
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM users WHERE id = ?", "SELECT * FROM users WHERE id = $1"},
		{"SELECT * FROM users WHERE id = ? AND name = ?", "SELECT * FROM users WHERE id = $1 AND name = $2"},
		{"INSERT INTO users VALUES (?, ?, ?)", "INSERT INTO users VALUES ($1, $2, $3)"},
		{"SELECT * FROM users", "SELECT * FROM users"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := d.Rebind(tt.query); got != tt.want {
				t.Errorf("Rebind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLiteDialect_VectorRoundTrip(t *testing.T) {
	d := &sqliteDialect{}

	encoded, err := d.EncodeVector([]float64{0.5, -1, 2.25})
	if err != nil {
		t.Fatalf("EncodeVector() error = %v", err)
	}
	if encoded != "[0.5,-1,2.25]" {
		t.Errorf("EncodeVector() = %v, want [0.5,-1,2.25]", encoded)
	}

	s := d.NewVectorScanner()
	if err := s.Scan([]byte(encoded.(string))); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	got := s.Vector()
	if len(got) != 3 || got[2] != 2.25 {
		t.Errorf("Vector() = %v", got)
	}

	null, err := d.EncodeVector(nil)
	if err != nil || null != nil {
		t.Errorf("EncodeVector(nil) = %v, %v, want nil", null, err)
	}
	if err := s.Scan(nil); err != nil || s.Vector() != nil {
		t.Errorf("Scan(nil) = %v, Vector() = %v, want nil", err, s.Vector())
	}
}

func TestPostgresDialect_VectorRoundTrip(t *testing.T) {
	d := &postgresDialect{}

	encoded, err := d.EncodeVector([]float64{0.5, -1, 2.25})
	if err != nil {
		t.Fatalf("EncodeVector() error = %v", err)
	}

	s := d.NewVectorScanner()
	// pgx returns unknown types in their text form.
	if err := s.Scan("[0.5,-1,2.25]"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	got := s.Vector()
	if len(got) != 3 || got[0] != 0.5 || got[1] != -1 || got[2] != 2.25 {
		t.Errorf("Vector() = %v", got)
	}
	if encoded == nil {
		t.Error("EncodeVector() = nil, want pgvector value")
	}

	if err := s.Scan(nil); err != nil || s.Vector() != nil {
		t.Errorf("Scan(nil) = %v, Vector() = %v, want nil", err, s.Vector())
	}
}

func TestInitStatements(t *testing.T) {
	if got := (&postgresDialect{}).InitStatements(); len(got) != 1 || got[0] != "CREATE EXTENSION IF NOT EXISTS vector" {
		t.Errorf("postgres InitStatements() = %v", got)
	}
	if got := (&sqliteDialect{}).InitStatements(); len(got) == 0 {
		t.Error("sqlite InitStatements() should set pragmas")
	}
}

func TestNearestNeighbours(t *testing.T) {
	tests := []struct {
		dialect    DialectType
		wantFilter string
		wantOrder  string
	}{
		{SQLite, "", ""},
		{Postgres, "vector_dims(vector) = ?", "vector <=> ?"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			d, _ := New(tt.dialect)
			filter, order := d.NearestNeighbours("vector")
			if filter != tt.wantFilter || order != tt.wantOrder {
				t.Errorf("NearestNeighbours() = %q, %q, want %q, %q", filter, order, tt.wantFilter, tt.wantOrder)
			}
		})
	}
}
