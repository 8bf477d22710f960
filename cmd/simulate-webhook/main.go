// simulate-webhook signs and posts a synthetic recipient event against a
// running server, for exercising the affiliation flow without the real
// processor.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	urlFlag := flag.String("url", "http://localhost:8080/webhooks/payment", "webhook endpoint")
	secretFlag := flag.String("secret", os.Getenv("PAYMENT_WEBHOOK_SECRET"), "webhook secret")
	externalIDFlag := flag.String("external-id", "", "recipient external id")
	statusFlag := flag.String("status", "active", "external status (active, rejected, inactive, pending)")
	linkFlag := flag.String("affiliation-url", "", "optional affiliation/KYC link")
	typeFlag := flag.String("type", "recipient.updated", "event type")
	flag.Parse()

	if *externalIDFlag == "" || *secretFlag == "" {
		fmt.Println("Usage: go run cmd/simulate-webhook/main.go --external-id rp_123 --status active --secret <webhook secret>")
		os.Exit(1)
	}

	data := map[string]interface{}{
		"id":     *externalIDFlag,
		"status": *statusFlag,
	}
	if *linkFlag != "" {
		data["affiliation_url"] = *linkFlag
	}
	body, err := json.Marshal(map[string]interface{}{
		"type": *typeFlag,
		"data": data,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal event: %v\n", err)
		os.Exit(1)
	}

	mac := hmac.New(sha256.New, []byte(*secretFlag))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, *urlFlag, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature", sig)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("%d %s\n", resp.StatusCode, string(respBody))
}
