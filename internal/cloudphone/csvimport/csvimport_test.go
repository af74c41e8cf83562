package csvimport_test

import (
	"strings"
	"testing"

	"cloudphone/internal/cloudphone/csvimport"
	"cloudphone/pkg/cloudphone"
)

func TestParse_MinimalColumns(t *testing.T) {
	accounts, err := csvimport.Parse("username,password\nalice,pw1\nbob,pw2\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Username != "alice" || accounts[0].Password != "pw1" {
		t.Fatalf("unexpected first row: %+v", accounts[0])
	}
	if accounts[1].Username != "bob" || accounts[1].Password != "pw2" {
		t.Fatalf("unexpected second row: %+v", accounts[1])
	}
}

func TestParse_MissingRequiredColumnErrors(t *testing.T) {
	if _, err := csvimport.Parse("username\nalice\n"); err == nil {
		t.Fatal("expected error for a missing password column")
	}
}

func TestParse_PostColumns(t *testing.T) {
	header := "username,password,post1_type,post1_description,post1_media"
	row := `alice,pw,video,hello world,"https://a/1.mp4,https://a/2.mp4"`
	accounts, err := csvimport.Parse(header + "\n" + row)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	posts := accounts[0].Posts
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].Type != cloudphone.PostTypeVideo || posts[0].Description != "hello world" {
		t.Fatalf("unexpected post: %+v", posts[0])
	}
	if len(posts[0].MediaURLs) != 2 {
		t.Fatalf("expected 2 media urls, got %v", posts[0].MediaURLs)
	}
}

func TestParse_SetupColumnsPopulateSetupData(t *testing.T) {
	header := "username,password,new_username,new_display_name,bio"
	row := "alice,pw,alice2,Alice Roe,hello bio"
	accounts, err := csvimport.Parse(header + "\n" + row)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if accounts[0].Setup == nil {
		t.Fatal("expected Setup to be populated")
	}
	if accounts[0].Setup.NewUsername != "alice2" || accounts[0].Setup.NewDisplayName != "Alice Roe" {
		t.Fatalf("unexpected setup data: %+v", accounts[0].Setup)
	}
}

func TestParse_NoSetupColumnsLeavesSetupNil(t *testing.T) {
	accounts, err := csvimport.Parse("username,password\nalice,pw\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if accounts[0].Setup != nil {
		t.Fatalf("expected nil Setup when no setup columns are present, got %+v", accounts[0].Setup)
	}
}

func TestParse_TSVDetectedFromHeader(t *testing.T) {
	data := strings.Join([]string{"username\tpassword", "alice\tpw"}, "\n")
	accounts, err := csvimport.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Username != "alice" || accounts[0].Password != "pw" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	accounts, err := csvimport.Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if accounts != nil {
		t.Fatalf("expected nil accounts for empty input, got %+v", accounts)
	}
}
