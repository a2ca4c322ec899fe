package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// End-to-end scenario against a running budget service backed by a real
// Fabric network. Enable with BUDGET_E2E=1 and point BUDGET_SERVICE_URL at
// the service (default http://localhost:8080).

func serviceURL() string {
	if url := os.Getenv("BUDGET_SERVICE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func TestSpendingRequestFlow(t *testing.T) {
	if os.Getenv("BUDGET_E2E") == "" {
		t.Skip("set BUDGET_E2E=1 to run against a live service")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	name := fmt.Sprintf("E2E University %d", time.Now().Unix())

	// 1. Register an institution.
	var reg struct {
		InstitutionID string `json:"institution_id"`
		AuditorID     string `json:"auditor_id"`
	}
	post(t, client, "/institutions/register", "", map[string]string{
		"name": name, "location": "Testville", "auditorPassword": "e2e-auditor-pass",
	}, http.StatusCreated, &reg)

	// 2. Auditor login.
	var login struct {
		Token string `json:"token"`
	}
	post(t, client, "/auth/login-auditor", "", map[string]string{
		"institutionId": reg.InstitutionID, "password": "e2e-auditor-pass",
	}, http.StatusOK, &login)
	auditorToken := login.Token

	// 3. Fund the institution.
	post(t, client, "/institutions/"+reg.InstitutionID+"/deposit", auditorToken, map[string]string{
		"auditorPassword": "e2e-auditor-pass", "amountEther": "5",
	}, http.StatusOK, nil)

	// 4. Create an associate and log in as them.
	var assoc struct {
		AssociateID string `json:"associate_id"`
	}
	post(t, client, "/auth/create-associate", auditorToken, map[string]string{
		"username": "e2e-bob", "password": "e2e-bob-pass", "auditorPassword": "e2e-auditor-pass",
	}, http.StatusCreated, &assoc)

	post(t, client, "/auth/login-associate", "", map[string]string{
		"institutionId": reg.InstitutionID, "associateId": assoc.AssociateID, "password": "e2e-bob-pass",
	}, http.StatusOK, &login)
	associateToken := login.Token

	// 5. Associate submits a spending request.
	var created struct {
		TxID string `json:"tx_id"`
	}
	post(t, client, "/transactions", associateToken, map[string]string{
		"receiver":    "0x1111111111111111111111111111111111111111",
		"amountEther": "2", "purpose": "e2e supplies", "priority": "medium",
	}, http.StatusCreated, &created)

	// 6. Auditor approves it.
	post(t, client, "/transactions/"+created.TxID+"/review", auditorToken, map[string]string{
		"decision": "Approved", "auditorComment": "e2e approval",
	}, http.StatusOK, nil)

	// 7. The summary reflects the spend.
	var summary struct {
		Metrics struct {
			TotalTransactions int `json:"total_transactions"`
		} `json:"metrics"`
	}
	get(t, client, "/institutions/"+reg.InstitutionID+"/summary", auditorToken, &summary)
	if summary.Metrics.TotalTransactions < 1 {
		t.Fatalf("expected at least one transaction in summary, got %d", summary.Metrics.TotalTransactions)
	}
}

func post(t *testing.T, client *http.Client, path, token string, payload any, wantStatus int, out any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, serviceURL()+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	doRequest(t, client, req, wantStatus, out)
}

func get(t *testing.T, client *http.Client, path, token string, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, serviceURL()+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	doRequest(t, client, req, http.StatusOK, out)
}

func doRequest(t *testing.T, client *http.Client, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d", req.Method, req.URL.Path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}
