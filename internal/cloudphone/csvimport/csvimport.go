// Package csvimport parses the CSV/TSV account rows the spec's
// inbound HTTP surface accepts as free-form text (spec §6 "CSV account
// input"). Grounded on encoding/csv, the standard library's own answer
// for this concern; the teacher has no CSV parsing of its own, so this
// follows internal/provisioner/config's header-driven, column-name-keyed
// parsing convention instead of positional fields.
package csvimport

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"cloudphone/pkg/cloudphone"
)

// Parse reads header-driven CSV or TSV text into account rows (spec §6:
// "at minimum username,password columns"). The delimiter is detected
// from the header line: a tab anywhere in it selects TSV, otherwise CSV.
func Parse(data string) ([]cloudphone.Account, error) {
	data = strings.TrimLeft(data, string(rune(0xFEFF)))
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	firstLine := data
	if idx := strings.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}
	delim := ','
	if strings.Contains(firstLine, "\t") {
		delim = '\t'
	}

	reader := csv.NewReader(strings.NewReader(data))
	reader.Comma = delim
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvimport: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := col["username"]; !ok {
		return nil, fmt.Errorf("csvimport: missing required column %q", "username")
	}
	if _, ok := col["password"]; !ok {
		return nil, fmt.Errorf("csvimport: missing required column %q", "password")
	}

	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var accounts []cloudphone.Account
	for _, row := range rows[1:] {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		account := cloudphone.Account{
			Username: get(row, "username"),
			Password: get(row, "password"),
		}

		if post, ok := parsePost(row, get, "post1"); ok {
			account.Posts = append(account.Posts, post)
		}
		if post, ok := parsePost(row, get, "post2"); ok {
			account.Posts = append(account.Posts, post)
		}

		if setup, ok := parseSetup(row, get, account.Posts); ok {
			account.Setup = &setup
		}

		accounts = append(accounts, account)
	}
	return accounts, nil
}

func parsePost(row []string, get func([]string, string) string, prefix string) (cloudphone.Post, bool) {
	typ := get(row, prefix+"_type")
	if typ == "" {
		return cloudphone.Post{}, false
	}
	media := get(row, prefix+"_media")
	var mediaURLs []string
	for _, u := range strings.Split(media, ",") {
		if u = strings.TrimSpace(u); u != "" {
			mediaURLs = append(mediaURLs, u)
		}
	}
	return cloudphone.Post{
		Type:        cloudphone.PostType(typ),
		Description: get(row, prefix+"_description"),
		MediaURLs:   mediaURLs,
	}, true
}

// parseSetup builds the row's setup payload, reporting false when the
// row carries none of the optional setup columns (so Account.Setup
// stays nil rather than an all-zero struct forcing every palette gate
// closed anyway, which would be indistinguishable from "not provided").
func parseSetup(row []string, get func([]string, string) string, posts []cloudphone.Post) (cloudphone.SetupData, bool) {
	newUsername := get(row, "new_username")
	newDisplayName := get(row, "new_display_name")
	bio := get(row, "bio")
	profilePictureURL := get(row, "profile_picture_url")
	highlightTitle := get(row, "highlight_title")
	highlightCoverURL := get(row, "highlight_cover_url")
	private, _ := strconv.ParseBool(get(row, "private"))
	enable2FA, _ := strconv.ParseBool(get(row, "enable2fa"))

	if newUsername == "" && newDisplayName == "" && bio == "" && profilePictureURL == "" &&
		highlightTitle == "" && highlightCoverURL == "" && !private && !enable2FA && len(posts) == 0 {
		return cloudphone.SetupData{}, false
	}

	return cloudphone.SetupData{
		NewUsername:       newUsername,
		NewDisplayName:    newDisplayName,
		Bio:               bio,
		ProfilePictureURL: profilePictureURL,
		Posts:             posts,
		HighlightTitle:    highlightTitle,
		HighlightCoverURL: highlightCoverURL,
		Private:           private,
		Enable2FA:         enable2FA,
	}, true
}
