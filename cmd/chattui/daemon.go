package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/storechat/internal/config"
)

// healthURL derives the chatd health endpoint from the channel URL.
func healthURL(cfg *config.Config) (string, error) {
	u, err := url.Parse(cfg.Server.ChannelURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = "/healthz"
	u.RawQuery = ""
	return u.String(), nil
}

// probeDaemon reports whether chatd answers its health check.
func probeDaemon(cfg *config.Config) bool {
	target, err := healthURL(cfg)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func startDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	chatd := filepath.Join(filepath.Dir(executable), "chatd")
	if _, err := os.Stat(chatd); err != nil {
		chatd = "chatd"
	}

	cmd := exec.Command(chatd)
	// Startup errors stay visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(cfg *config.Config, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(cfg) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
