package strategy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/internal/cloudphone/store"
	"cloudphone/internal/cloudphone/strategy"
	"cloudphone/pkg/cloudphone"
)

// Scenario 6: a publish step with one unreachable media URL fails fast
// with MediaUnreachable and never calls the publish RPC (spec §8
// scenario 6).
func TestPost_MediaUnreachableFailsFastWithoutPublishing(t *testing.T) {
	reachable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer reachable.Close()
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer missing.Close()

	b := bus.New()
	st := store.New(b)
	job := &cloudphone.PhoneJob{
		EnvID: "E1",
		Account: cloudphone.Account{
			Posts: []cloudphone.Post{{
				Type:      cloudphone.PostTypeVideo,
				MediaURLs: []string{reachable.URL + "/ok.mp4", missing.URL + "/missing.mp4"},
			}},
		},
	}
	if err := st.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	api := &fakeAPI{}
	post := strategy.Post{}
	handler, found := post.GetStateHandler(cloudphone.StatePublishPost1)
	if !found {
		t.Fatal("expected a handler for PUBLISH_POST_1")
	}

	cfg := cloudphone.WorkflowConfig{WorkflowType: cloudphone.WorkflowPost, MaxRetriesPerStage: 1}
	ec := &executor.Context{EnvID: "E1", Client: api, Config: cfg, Store: st, Bus: b}

	err := handler(context.Background(), ec)
	if err == nil {
		t.Fatal("expected a MediaUnreachable error")
	}
	if !strings.Contains(err.Error(), missing.URL+"/missing.mp4") {
		t.Fatalf("expected error to enumerate the missing URL, got %q", err.Error())
	}
	if cloudphoneerr.IsRetryable(err) {
		t.Fatal("MediaUnreachable must not be retryable")
	}
	if api.publishCalls != 0 {
		t.Fatalf("expected no publish RPC to be issued, got %d calls", api.publishCalls)
	}
}
