// Load generator for exercising a running Kestrel instance with synthetic
// subscriber data.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -count 5000
//
// This tool:
//  1. Generates a synthetic subscriber batch with seeded anomalies
//     (blacklist hits, flat winter profiles, 120-band consumption)
//  2. Loads it as an analysis session and runs every analyzer pass
//  3. Compares flagged subscribers against the seeded anomaly labels
//  4. Reports precision, recall, and per-request latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Wire types mirror the Kestrel API request and response formats.

type monthly struct {
	Jan float64 `json:"jan"`
	Feb float64 `json:"feb"`
	Mar float64 `json:"mar"`
	Apr float64 `json:"apr"`
	May float64 `json:"may"`
	Jun float64 `json:"jun"`
	Jul float64 `json:"jul"`
	Aug float64 `json:"aug"`
	Sep float64 `json:"sep"`
	Oct float64 `json:"oct"`
	Nov float64 `json:"nov"`
	Dec float64 `json:"dec"`
}

type subscriber struct {
	TesisatNo   string  `json:"tesisatNo"`
	MuhatapNo   string  `json:"muhatapNo"`
	Address     string  `json:"address,omitempty"`
	City        string  `json:"city,omitempty"`
	District    string  `json:"district,omitempty"`
	AboneTipi   string  `json:"aboneTipi"`
	Consumption monthly `json:"consumption"`
}

type dataset struct {
	Subscribers     []subscriber `json:"subscribers"`
	FraudMuhatapIDs []string     `json:"fraudMuhatapIds,omitempty"`
	FraudTesisatIDs []string     `json:"fraudTesisatIds,omitempty"`
}

type sessionResponse struct {
	ID    string `json:"id"`
	Stats struct {
		Total  int `json:"total"`
		Kritik int `json:"kritik"`
		Yuksek int `json:"yuksek"`
		Orta   int `json:"orta"`
		Dusuk  int `json:"dusuk"`
	} `json:"stats"`
}

type riskScore struct {
	TesisatNo  string `json:"tesisatNo"`
	TotalScore int    `json:"totalScore"`
	RiskLevel  string `json:"riskLevel"`
}

type resultsResponse struct {
	Results []riskScore `json:"results"`
}

// anomalyKind labels a seeded subscriber for the accuracy report.
type anomalyKind string

const (
	anomalyNone      anomalyKind = ""
	anomalyBlacklist anomalyKind = "blacklist"
	anomalyFlat      anomalyKind = "flat"
	anomalyBand120   anomalyKind = "band120"
)

var analyzerModules = []string{"tampering", "rule120", "inconsistency"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	count := flag.Int("count", 5000, "Number of synthetic subscribers")
	anomalyRate := flag.Float64("anomaly", 0.05, "Fraction of seeded anomalies (0.0-1.0)")
	seed := flag.Int64("seed", 42, "Random seed")
	verbose := flag.Bool("verbose", false, "Print each missed anomaly")
	flag.Parse()

	fmt.Println("KESTREL LOAD GENERATOR")
	fmt.Printf("\nKestrel URL:  %s\n", *baseURL)
	fmt.Printf("Subscribers:  %d\n", *count)
	fmt.Printf("Anomaly Rate: %.2f\n", *anomalyRate)
	fmt.Printf("Seed:         %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	rng := rand.New(rand.NewSource(*seed))
	data, labels := generateDataset(rng, *count, *anomalyRate)

	seeded := 0
	for _, kind := range labels {
		if kind != anomalyNone {
			seeded++
		}
	}
	fmt.Printf("Generated %d subscribers (%d seeded anomalies)\n", len(data.Subscribers), seeded)

	client := &http.Client{Timeout: 60 * time.Second}

	// Load the session
	start := time.Now()
	sessionID, stats, err := loadSession(client, *baseURL, data)
	if err != nil {
		fmt.Printf("ERROR: failed to load session: %v\n", err)
		os.Exit(1)
	}
	loadMs := time.Since(start).Milliseconds()
	fmt.Printf("Session %s loaded in %dms (kritik=%d yuksek=%d)\n", sessionID, loadMs, stats.Stats.Kritik, stats.Stats.Yuksek)

	// Run every analyzer pass
	for _, module := range analyzerModules {
		start := time.Now()
		if err := applyAnalyzer(client, *baseURL, sessionID, module); err != nil {
			fmt.Printf("ERROR: analyzer %s failed: %v\n", module, err)
			os.Exit(1)
		}
		fmt.Printf("Analyzer %-13s completed in %dms\n", module, time.Since(start).Milliseconds())
	}

	// Fetch final results and score detection accuracy
	results, err := fetchResults(client, *baseURL, sessionID)
	if err != nil {
		fmt.Printf("ERROR: failed to fetch results: %v\n", err)
		os.Exit(1)
	}

	printAccuracy(results, labels, *verbose)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateDataset builds a synthetic residential batch with a seasonal
// heating curve plus noise, seeding anomalies at the requested rate.
func generateDataset(rng *rand.Rand, count int, anomalyRate float64) (dataset, map[string]anomalyKind) {
	data := dataset{Subscribers: make([]subscriber, 0, count)}
	labels := make(map[string]anomalyKind, count)

	districts := []string{"Çankaya", "Keçiören", "Yenimahalle", "Mamak"}

	for i := 0; i < count; i++ {
		tesisat := fmt.Sprintf("T-%06d", i)
		muhatap := fmt.Sprintf("M-%06d", i)
		sub := subscriber{
			TesisatNo: tesisat,
			MuhatapNo: muhatap,
			Address:   fmt.Sprintf("Sokak %d No:%d", i%200, i%40+1),
			City:      "Ankara",
			District:  districts[i%len(districts)],
			AboneTipi: "residential",
		}

		kind := anomalyNone
		if rng.Float64() < anomalyRate {
			switch rng.Intn(3) {
			case 0:
				kind = anomalyBlacklist
			case 1:
				kind = anomalyFlat
			default:
				kind = anomalyBand120
			}
		}

		switch kind {
		case anomalyFlat:
			// High flat winter: no heating signature despite real usage.
			base := 40 + rng.Float64()*20
			sub.Consumption = flatProfile(base, rng)
		case anomalyBand120:
			// Winter months pinned inside the suspicious band.
			sub.Consumption = seasonalProfile(200+rng.Float64()*150, rng)
			sub.Consumption.Dec = 60 + rng.Float64()*55
			sub.Consumption.Jan = 60 + rng.Float64()*55
			sub.Consumption.Feb = 60 + rng.Float64()*55
		case anomalyBlacklist:
			sub.Consumption = seasonalProfile(200+rng.Float64()*150, rng)
			data.FraudMuhatapIDs = append(data.FraudMuhatapIDs, muhatap)
		default:
			sub.Consumption = seasonalProfile(200+rng.Float64()*150, rng)
		}

		labels[tesisat] = kind
		data.Subscribers = append(data.Subscribers, sub)
	}

	return data, labels
}

// seasonalProfile produces a normal heating curve: winter peak, summer floor.
func seasonalProfile(winterPeak float64, rng *rand.Rand) monthly {
	noise := func(v float64) float64 { return v * (0.85 + rng.Float64()*0.3) }
	summer := winterPeak * 0.12
	return monthly{
		Jan: noise(winterPeak), Feb: noise(winterPeak * 0.95), Mar: noise(winterPeak * 0.7),
		Apr: noise(winterPeak * 0.4), May: noise(summer * 2), Jun: noise(summer),
		Jul: noise(summer), Aug: noise(summer), Sep: noise(summer * 1.3),
		Oct: noise(winterPeak * 0.3), Nov: noise(winterPeak * 0.6), Dec: noise(winterPeak * 0.9),
	}
}

// flatProfile produces near-identical months, the flatline signature.
func flatProfile(base float64, rng *rand.Rand) monthly {
	noise := func() float64 { return base + rng.Float64()*0.5 }
	return monthly{
		Jan: noise(), Feb: noise(), Mar: noise(), Apr: noise(),
		May: noise(), Jun: noise(), Jul: noise(), Aug: noise(),
		Sep: noise(), Oct: noise(), Nov: noise(), Dec: noise(),
	}
}

func loadSession(client *http.Client, baseURL string, data dataset) (string, *sessionResponse, error) {
	body, err := json.Marshal(map[string]any{
		"name":    fmt.Sprintf("loadgen %s", time.Now().Format(time.RFC3339)),
		"dataset": data,
	})
	if err != nil {
		return "", nil, err
	}

	resp, err := client.Post(baseURL+"/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", nil, err
	}
	return session.ID, &session, nil
}

func applyAnalyzer(client *http.Client, baseURL, sessionID, module string) error {
	resp, err := client.Post(baseURL+"/sessions/"+sessionID+"/analyze/"+module, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func fetchResults(client *http.Client, baseURL, sessionID string) ([]riskScore, error) {
	resp, err := client.Get(baseURL + "/sessions/" + sessionID + "/results")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// printAccuracy treats "score >= 50" (Yüksek and above) as a positive and
// scores it against the seeded labels.
func printAccuracy(results []riskScore, labels map[string]anomalyKind, verbose bool) {
	var tp, fp, tn, fn int
	missedByKind := map[anomalyKind]int{}
	totalByKind := map[anomalyKind]int{}

	for _, rs := range results {
		kind := labels[rs.TesisatNo]
		seeded := kind != anomalyNone
		flagged := rs.TotalScore >= 50

		if seeded {
			totalByKind[kind]++
		}

		switch {
		case flagged && seeded:
			tp++
		case flagged && !seeded:
			fp++
		case !flagged && seeded:
			fn++
			missedByKind[kind]++
			if verbose {
				fmt.Printf("MISSED %s (%s): score %d\n", rs.TesisatNo, kind, rs.TotalScore)
			}
		default:
			tn++
		}
	}

	precision := 0.0
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}

	fmt.Println("\nDETECTION RESULTS")
	fmt.Printf("  True Positives:   %d\n", tp)
	fmt.Printf("  False Positives:  %d\n", fp)
	fmt.Printf("  True Negatives:   %d\n", tn)
	fmt.Printf("  False Negatives:  %d\n", fn)
	fmt.Printf("  Precision:        %.4f\n", precision)
	fmt.Printf("  Recall:           %.4f\n", recall)

	if len(totalByKind) > 0 {
		fmt.Println("\nPER-ANOMALY RECALL")
		for _, kind := range []anomalyKind{anomalyBlacklist, anomalyFlat, anomalyBand120} {
			total := totalByKind[kind]
			if total == 0 {
				continue
			}
			caught := total - missedByKind[kind]
			fmt.Printf("  %-10s %d / %d (%.2f%%)\n", kind, caught, total, 100*float64(caught)/float64(total))
		}
	}
	fmt.Println()
}
