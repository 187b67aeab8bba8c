package engine

import (
	"reflect"
	"testing"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

func squashFixture() []*migration.Migration {
	return []*migration.Migration{
		{
			ID: "0001_initial", Hash: "h1", Initial: true,
			Operations: []migration.Operation{
				&migration.CreateModel{Name: "user", Fields: []imr.Field{
					field("id", imr.UInt64, imr.PrimaryKey{}),
					field("username", imr.VarChar, imr.MaxLength{Value: 100}),
				}},
			},
		},
		{
			ID: "0002_add_post", Hash: "h2", Dependency: "0001_initial",
			Operations: []migration.Operation{
				&migration.CreateModel{Name: "post", Fields: []imr.Field{
					field("id", imr.UInt64, imr.PrimaryKey{}),
					field("title", imr.VarChar, imr.MaxLength{Value: 200}),
				}},
			},
		},
		{
			ID: "0003_drop_title", Hash: "h3", Dependency: "0002_add_post",
			Operations: []migration.Operation{
				&migration.DeleteField{ModelName: "post", Name: "title"},
				&migration.AddField{ModelName: "post", Field: field("slug", imr.VarChar, imr.MaxLength{Value: 80}, imr.Unique{})},
			},
		},
		{
			ID: "0004_add_tag", Hash: "h4", Dependency: "0003_drop_title",
			Operations: []migration.Operation{
				&migration.CreateModel{Name: "tag", Fields: []imr.Field{
					field("name", imr.VarChar, imr.PrimaryKey{}, imr.MaxLength{Value: 40}),
				}},
			},
		},
	}
}

func TestSquashWholeChain(t *testing.T) {
	migrations := squashFixture()
	hist := historyOf(migrations...)

	squashed, err := Squash(hist, "0001_initial", "0003_drop_title")
	if err != nil {
		t.Fatalf("Squash() error: %v", err)
	}

	if !squashed.Initial {
		t.Error("squash starting at the initial migration must itself be initial")
	}
	if squashed.Dependency != "" {
		t.Errorf("Dependency = %q, want empty", squashed.Dependency)
	}
	if squashed.Hash != "h3" {
		t.Errorf("Hash = %q, want the last member's hash h3", squashed.Hash)
	}
	wantReplaces := []string{"0001_initial", "0002_add_post", "0003_drop_title"}
	if !reflect.DeepEqual(squashed.Replaces, wantReplaces) {
		t.Errorf("Replaces = %v, want %v", squashed.Replaces, wantReplaces)
	}

	// The run collapses to plain creates: the intermediate title column
	// never appears.
	if len(squashed.Operations) != 2 {
		t.Fatalf("expected 2 creates, got %v", squashed.Operations)
	}
	post := squashed.Operations[0].(*migration.CreateModel)
	user := squashed.Operations[1].(*migration.CreateModel)
	if post.Name != "post" || user.Name != "user" {
		t.Errorf("creates = %q, %q (sorted by table name)", post.Name, user.Name)
	}
	for _, f := range post.Fields {
		if f.Name == "title" {
			t.Error("squashed create must not contain the dropped title column")
		}
	}
}

func TestSquashMidChain(t *testing.T) {
	migrations := squashFixture()
	hist := historyOf(migrations...)

	squashed, err := Squash(hist, "0002_add_post", "0003_drop_title")
	if err != nil {
		t.Fatalf("Squash() error: %v", err)
	}

	if squashed.Initial {
		t.Error("mid-chain squash must not be initial")
	}
	if squashed.Dependency != "0001_initial" {
		t.Errorf("Dependency = %q, want 0001_initial", squashed.Dependency)
	}
	if !reflect.DeepEqual(squashed.Replaces, []string{"0002_add_post", "0003_drop_title"}) {
		t.Errorf("Replaces = %v", squashed.Replaces)
	}

	// Replaying around the squash must land on the same state as the
	// original chain.
	squashed.ID = "0005_squashed"
	original, err := Replay(migrations)
	if err != nil {
		t.Fatalf("Replay(original) error: %v", err)
	}
	rewired := []*migration.Migration{migrations[0], squashed, migrations[3]}
	rewired[2] = &migration.Migration{
		ID: "0004_add_tag", Hash: "h4", Dependency: "0005_squashed",
		Operations: migrations[3].Operations,
	}
	replayed, err := Replay(rewired)
	if err != nil {
		t.Fatalf("Replay(squashed) error: %v", err)
	}
	if !schemasEqual(t, original, replayed) {
		t.Error("squashed chain must replay to the same schema as the original")
	}
}

func TestSquashSingleMigration(t *testing.T) {
	hist := historyOf(squashFixture()...)

	squashed, err := Squash(hist, "0002_add_post", "0002_add_post")
	if err != nil {
		t.Fatalf("Squash() error: %v", err)
	}
	if !reflect.DeepEqual(squashed.Replaces, []string{"0002_add_post"}) {
		t.Errorf("Replaces = %v", squashed.Replaces)
	}
	if squashed.Dependency != "0001_initial" {
		t.Errorf("Dependency = %q", squashed.Dependency)
	}
}

func TestSquashCarriesForwardReplaces(t *testing.T) {
	migrations := squashFixture()
	// 0002 already subsumed an earlier pair in a previous squash.
	migrations[1].Replaces = []string{"0001_old_a", "0001_old_b"}
	hist := historyOf(migrations...)

	squashed, err := Squash(hist, "0002_add_post", "0003_drop_title")
	if err != nil {
		t.Fatalf("Squash() error: %v", err)
	}
	want := []string{"0001_old_a", "0001_old_b", "0002_add_post", "0003_drop_title"}
	if !reflect.DeepEqual(squashed.Replaces, want) {
		t.Errorf("Replaces = %v, want %v", squashed.Replaces, want)
	}
}

func TestSquashErrors(t *testing.T) {
	hist := historyOf(squashFixture()...)

	tests := []struct {
		name  string
		first string
		last  string
	}{
		{"unknown first", "0009_ghost", "0003_drop_title"},
		{"unknown last", "0001_initial", "0009_ghost"},
		{"reversed order", "0003_drop_title", "0001_initial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Squash(hist, tt.first, tt.last)
			if !sterr.Is(err, sterr.ErrNonContiguous) {
				t.Fatalf("expected %s, got %v", sterr.ErrNonContiguous, err)
			}
		})
	}
}

func TestSquashSkipsReplacedMembers(t *testing.T) {
	migrations := squashFixture()
	migrations = append(migrations, &migration.Migration{
		ID: "0005_squash", Hash: "h3", Initial: true,
		Replaces:   []string{"0001_initial", "0002_add_post", "0003_drop_title"},
		Operations: nil,
	})
	hist := historyOf(migrations...)

	_, err := Squash(hist, "0001_initial", "0002_add_post")
	if !sterr.Is(err, sterr.ErrNonContiguous) {
		t.Fatalf("replaced migrations must not be squashable, got %v", err)
	}
}
