package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/config"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/service"
)

func draftRouter(apiURL string) *gin.Engine {
	ai := service.NewAIService(&config.AIConfig{APIURL: apiURL, Model: "test-model"})
	handler := NewDraftHandler(ai)

	router := gin.New()
	router.POST("/draft", handler.Draft)
	return router
}

func postDraft(router *gin.Engine, body map[string]string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/draft", bytes.NewBuffer(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDraftSuggestion(t *testing.T) {
	aiAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suggestion := `{"title":"Website Redesign","deliverables":["Homepage","Contact form"],"summary":"Two-page site"}`
		out, _ := json.Marshal(map[string]string{"output": suggestion})
		w.Write(out)
	}))
	defer aiAPI.Close()

	w := postDraft(draftRouter(aiAPI.URL), map[string]string{
		"client_name": "Acme Corp",
		"brief":       "Redesign their marketing site",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Suggestion *service.DraftSuggestion `json:"suggestion"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Suggestion == nil {
		t.Fatal("Expected a suggestion")
	}
	if response.Suggestion.Title != "Website Redesign" {
		t.Errorf("Expected title 'Website Redesign', got '%s'", response.Suggestion.Title)
	}
	if len(response.Suggestion.Deliverables) != 2 {
		t.Errorf("Expected 2 deliverables, got %d", len(response.Suggestion.Deliverables))
	}
}

func TestDraftSuggestionAIFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "non-JSON output",
			handler: func(w http.ResponseWriter, r *http.Request) {
				out, _ := json.Marshal(map[string]string{"output": "sorry, I can't do that"})
				w.Write(out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aiAPI := httptest.NewServer(tt.handler)
			defer aiAPI.Close()

			w := postDraft(draftRouter(aiAPI.URL), map[string]string{"brief": "Redesign the site"})

			// AI failures degrade to a null suggestion, never an error
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if response["suggestion"] != nil {
				t.Errorf("Expected null suggestion, got %v", response["suggestion"])
			}
		})
	}
}

func TestDraftValidation(t *testing.T) {
	w := postDraft(draftRouter("http://unused"), map[string]string{"client_name": "Acme"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without a brief, got %d", w.Code)
	}
}
