package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"todo_backend/internal/dto"
	"todo_backend/internal/logger"

	"github.com/joho/godotenv"
)

var samples = []struct {
	title, description string
	dueInDays          int
}{
	{"Buy milk", "2 litres, semi-skimmed", 1},
	{"Walk dog", "Around the park", 0},
	{"Pay electricity bill", "", -2},
	{"Book dentist appointment", "Ask for a morning slot", 14},
	{"Read chapter 3", "", 0},
}

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	base := flag.String("url", "http://127.0.0.1:"+port, "server base URL")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	endpoint := *base + "/api/v1/functions/addTodo"

	for i, s := range samples {
		req := dto.CreateTodoRequest{Title: s.title}
		if s.description != "" {
			desc := s.description
			req.Description = &desc
		}
		if s.dueInDays != 0 {
			due := time.Now().UTC().AddDate(0, 0, s.dueInDays).Truncate(24 * time.Hour)
			req.DueDate = dto.NewDueDate(&due)
		}
		order := float64(i)
		req.Order = &order

		id, err := call(client, endpoint, req)
		if err != nil {
			logger.Fatal("seed failed", "title", s.title, "error", err)
		}
		logger.Info("seeded todo", "id", id, "title", s.title)
	}
}

func call(client *http.Client, endpoint string, req dto.CreateTodoRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	res, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out struct {
		Value string `json:"value"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%s: %s", out.Error.Code, out.Error.Message)
	}
	return out.Value, nil
}
