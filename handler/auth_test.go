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

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 1}
}

func signupBody(email, password, name string) *bytes.Buffer {
	b, _ := json.Marshal(map[string]string{"email": email, "password": password, "name": name})
	return bytes.NewBuffer(b)
}

func TestAuthSignupAndLogin(t *testing.T) {
	users := service.NewMemoryUserStore()
	handler := NewAuthHandler(users, testAuthConfig())

	router := gin.New()
	router.POST("/signup", handler.Signup)
	router.POST("/login", handler.Login)

	req := httptest.NewRequest("POST", "/signup", signupBody("dev@example.com", "supersecret", "Dev"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if created.Token == "" {
		t.Error("Expected a token in signup response")
	}
	if created.Email != "dev@example.com" {
		t.Errorf("Expected email 'dev@example.com', got '%s'", created.Email)
	}

	// The same credentials must log in
	body, _ := json.Marshal(map[string]string{"email": "dev@example.com", "password": "supersecret"})
	req = httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var logged LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &logged); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if logged.UserID != created.UserID {
		t.Errorf("Expected user ID '%s', got '%s'", created.UserID, logged.UserID)
	}
}

func TestAuthSignupDuplicateEmail(t *testing.T) {
	users := service.NewMemoryUserStore()
	handler := NewAuthHandler(users, testAuthConfig())

	router := gin.New()
	router.POST("/signup", handler.Signup)

	for i, expected := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest("POST", "/signup", signupBody("dup@example.com", "supersecret", "Dup"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != expected {
			t.Errorf("Attempt %d: expected status %d, got %d", i+1, expected, w.Code)
		}
	}
}

func TestAuthSignupValidation(t *testing.T) {
	handler := NewAuthHandler(service.NewMemoryUserStore(), testAuthConfig())

	router := gin.New()
	router.POST("/signup", handler.Signup)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "bad email", email: "not-an-email", password: "supersecret"},
		{name: "short password", email: "a@example.com", password: "short"},
		{name: "missing email", email: "", password: "supersecret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/signup", signupBody(tt.email, tt.password, "X"))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestAuthLoginBadCredentials(t *testing.T) {
	users := service.NewMemoryUserStore()
	handler := NewAuthHandler(users, testAuthConfig())

	router := gin.New()
	router.POST("/signup", handler.Signup)
	router.POST("/login", handler.Login)

	req := httptest.NewRequest("POST", "/signup", signupBody("known@example.com", "supersecret", "Known"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Signup failed: %d", w.Code)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "known@example.com", password: "wrongpassword"},
		{name: "unknown user", email: "nobody@example.com", password: "supersecret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"email": tt.email, "password": tt.password})
			req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestAuthGetCurrentUser(t *testing.T) {
	users := service.NewMemoryUserStore()
	handler := NewAuthHandler(users, testAuthConfig())

	router := gin.New()
	router.POST("/signup", handler.Signup)

	req := httptest.NewRequest("POST", "/signup", signupBody("me@example.com", "supersecret", "Me"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var created LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse signup response: %v", err)
	}

	router.GET("/me", func(c *gin.Context) {
		c.Set("user_id", created.UserID)
		handler.GetCurrentUser(c)
	})

	req = httptest.NewRequest("GET", "/me", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["email"] != "me@example.com" {
		t.Errorf("Expected email 'me@example.com', got '%v'", response["email"])
	}
	if _, ok := response["password_hash"]; ok {
		t.Error("Password hash must never appear in responses")
	}
}
