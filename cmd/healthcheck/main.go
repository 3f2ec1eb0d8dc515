package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	url := os.Getenv("GALLERY_HEALTH_URL")
	if url == "" {
		url = "http://127.0.0.1:8080/api/version"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		os.Exit(1)
	}
	defer resp.Body.Close()
	// Consider any status < 500 as healthy (including 404 for missing root)
	if resp.StatusCode >= 500 {
		os.Exit(1)
	}
	os.Exit(0)
}
