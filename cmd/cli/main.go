package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "provision":
		provisionAccount(args)
	case "room":
		handleRoom(args)
	case "tenant":
		handleTenant(args)
	case "checkout":
		checkoutOccupancy(args)
	case "orphan":
		handleOrphan(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore auth <token|logout|who>")
		return
	}

	switch args[0] {
	case "token":
		if len(args) < 2 {
			fmt.Println("Usage: dormcore auth token <jwt>")
			return
		}
		if err := saveToken(args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("✓ Token saved")
	case "logout":
		os.Remove(tokenFile())
		fmt.Println("✓ Logged out")
	case "who":
		token := loadToken()
		if token == "" {
			fmt.Println("Not logged in")
			return
		}
		fmt.Printf("✓ Logged in (token: %s...)\n", token[:min(20, len(token))])
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleRoom(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore room <list|info|occupants|admit>")
		return
	}

	switch args[0] {
	case "list":
		listRooms()
	case "info":
		roomInfo(args[1:])
	case "occupants":
		roomOccupants(args[1:])
	case "admit":
		admitTenant(args[1:])
	default:
		fmt.Printf("unknown room command: %s\n", args[0])
	}
}

func handleTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore tenant <get|contract>")
		return
	}

	switch args[0] {
	case "get":
		getTenant(args[1:])
	case "contract":
		tenantContract(args[1:])
	default:
		fmt.Printf("unknown tenant command: %s\n", args[0])
	}
}

func handleOrphan(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore orphan <list|resolve>")
		return
	}

	switch args[0] {
	case "list":
		listOrphans()
	case "resolve":
		resolveOrphan(args[1:])
	default:
		fmt.Printf("unknown orphan command: %s\n", args[0])
	}
}

func provisionAccount(args []string) {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	firstName := fs.String("first", "", "first name")
	lastName := fs.String("last", "", "last name")
	phone := fs.String("phone", "", "phone number (optional)")
	address := fs.String("address", "", "address")
	role := fs.String("role", "user", "account role")

	fs.Parse(args)

	if *email == "" || *password == "" || *firstName == "" || *lastName == "" || *address == "" {
		fmt.Println("Error: email, password, first, last, and address are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"email":     *email,
		"password":  *password,
		"firstName": *firstName,
		"lastName":  *lastName,
		"address":   *address,
		"role":      *role,
	}
	if *phone != "" {
		payload["phone"] = *phone
	}

	result, status, err := postJSON("/provision", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if status == 201 {
		fmt.Printf("✓ Account provisioned: tenant %v, identity %v\n", result["tenantId"], result["identityId"])
		return
	}
	fmt.Printf("✗ Provisioning failed (state: %v): %v\n", result["state"], result["error"])
	if id, ok := result["identityId"].(string); ok && id != "" {
		fmt.Printf("  orphaned identity: %s\n", id)
	}
	if id, ok := result["tenantId"].(string); ok && id != "" {
		fmt.Printf("  orphaned tenant: %s\n", id)
	}
}

func listRooms() {
	var rooms []map[string]interface{}
	if err := getJSON("/rooms", &rooms); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROOM\tSTATUS\tCAPACITY\tOCCUPIED")
	for _, room := range rooms {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", room["id"], room["roomNumber"], room["status"], room["capacity"], room["occupied"])
	}
	w.Flush()
}

func roomInfo(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore room info <room-id>")
		return
	}

	var room map[string]interface{}
	if err := getJSON("/rooms/"+args[0], &room); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tSTATUS\tCAPACITY\tOCCUPIED")
	fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", room["roomNumber"], room["status"], room["capacity"], room["occupied"])
	w.Flush()
}

func roomOccupants(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore room occupants <room-id>")
		return
	}

	var occupants []map[string]interface{}
	if err := getJSON("/rooms/"+args[0]+"/occupants", &occupants); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tPHONE")
	for _, o := range occupants {
		fmt.Fprintf(w, "%v\t%v %v\t%v\t%v\n", o["id"], o["firstName"], o["lastName"], o["residents"], o["phone"])
	}
	w.Flush()
}

func admitTenant(args []string) {
	fs := flag.NewFlagSet("admit", flag.ExitOnError)
	roomID := fs.String("room", "", "room id")
	tenantID := fs.String("tenant", "", "existing tenant id")

	fs.Parse(args)

	if *roomID == "" || *tenantID == "" {
		fmt.Println("Error: room and tenant are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postJSON("/rooms/"+*roomID+"/admissions", map[string]string{"tenantId": *tenantID})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Admitted: occupancy %v\n", result["id"])
		return
	}
	fmt.Printf("✗ Admission denied: %v\n", result["error"])
}

func checkoutOccupancy(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore checkout <occupancy-id>")
		return
	}

	result, status, err := postJSON("/occupancy/"+args[0]+"/checkout", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Println("✓ Checked out")
		return
	}
	fmt.Printf("✗ Checkout failed: %v\n", result["error"])
}

func getTenant(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore tenant get <tenant-id>")
		return
	}

	var tenant map[string]interface{}
	if err := getJSON("/tenants/"+args[0], &tenant); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROOM\tVERSION")
	fmt.Fprintf(w, "%v\t%v %v\t%v\t%v\t%v\n",
		tenant["id"], tenant["firstName"], tenant["lastName"], tenant["email"], tenant["roomNumber"], tenant["version"])
	w.Flush()
}

func tenantContract(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore tenant contract <tenant-id>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/tenants/"+args[0]+"/contract", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		fmt.Printf("✓ Contract (%v): %v\n", result["format"], result["url"])
		return
	}
	fmt.Println("No contract document on file")
}

func listOrphans() {
	var orphans []map[string]interface{}
	if err := getJSON("/orphans", &orphans); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tEMAIL\tIDENTITY\tTENANT\tCREATED")
	for _, o := range orphans {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
			o["id"], o["state"], o["email"], o["identityId"], o["tenantId"], o["createdAt"])
	}
	w.Flush()
}

func resolveOrphan(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dormcore orphan resolve <orphan-id>")
		return
	}

	result, status, err := postJSON("/orphans/"+args[0]+"/resolve", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Println("✓ Orphan marker resolved")
		return
	}
	fmt.Printf("✗ Resolve failed: %v\n", result["error"])
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("DORMCORE_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func getJSON(path string, out interface{}) error {
	req, _ := http.NewRequest("GET", getAPIURL()+path, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		var errBody map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("%v (status %d)", errBody["error"], resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(path string, payload interface{}) (map[string]interface{}, int, error) {
	var body *bytes.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest("POST", getAPIURL()+path, body)
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.dormcore/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.dormcore", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`dormcore CLI

Usage:
  dormcore <command> [options]

Commands:
  auth       Token management (token, logout, who)
  provision  Provision a tenant account (admin token required)
  room       Room operations (list, info, occupants, admit)
  tenant     Tenant operations (get, contract)
  checkout   Close an occupancy record
  orphan     Provisioning orphan backlog (list, resolve)
  help       Show this help message

Environment Variables:
  DORMCORE_API    API endpoint (default: http://localhost:8080/api)

Examples:
  dormcore auth token eyJhbGciOi...
  dormcore provision -email a@b.com -password secret1 -first Ploy -last S. -address "12/3 Rama IV"
  dormcore room occupants 7f1c...
  dormcore room admit -room 7f1c... -tenant 9d2e...
  dormcore orphan list
`)
}
