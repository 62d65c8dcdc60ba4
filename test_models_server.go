package main

import (
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"time"
)

// Standalone mock of the four model services, all on one port. Point every
// endpoint in configs/config.yaml at http://localhost:9000 and the service
// runs end-to-end without real models.

type transcribeResponse struct {
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Segments []segmentResponse `json:"segments"`
	Duration float64           `json:"duration"`
}

type segmentResponse struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type turnResponse struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	requestID := r.FormValue("request_id")
	language := r.FormValue("language")
	timestamps := r.FormValue("timestamps")

	log.Printf("🎤 transcribe: request_id=%s file=%s size=%d language=%q timestamps=%s",
		requestID, header.Filename, len(audioData), language, timestamps)

	// Simulate inference latency
	time.Sleep(150 * time.Millisecond)

	// 44-byte WAV header, 2 bytes per 16 kHz sample
	duration := float64(len(audioData)-44) / 2.0 / 16000.0
	if duration < 0 {
		duration = 0
	}

	response := transcribeResponse{
		Text:     "this is a mock transcription of the submitted audio",
		Language: "en",
		Duration: duration,
	}
	if timestamps == "true" {
		half := duration / 2
		response.Segments = []segmentResponse{
			{Start: 0, End: half, Text: "this is a mock transcription"},
			{Start: half, End: duration, Text: "of the submitted audio"},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func scoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusBadRequest)
		return
	}

	// Crude energy heuristic over the PCM16 payload so streamed silence and
	// speech behave differently end-to-end.
	var sum float64
	n := 0
	for i := 44; i+1 < len(body); i += 2 {
		s := float64(int16(uint16(body[i]) | uint16(body[i+1])<<8))
		sum += s * s
		n++
	}
	probability := 0.05
	if n > 0 && math.Sqrt(sum/float64(n)) > 300 {
		probability = 0.95
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"probability": probability})
}

func diarizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusBadRequest)
		return
	}

	duration := float64(len(body)-44) / 2.0 / 16000.0
	if duration < 0 {
		duration = 0
	}

	// Two alternating speakers split down the middle
	turns := []turnResponse{
		{Start: 0, End: duration / 2, Label: "SPEAKER_00"},
		{Start: duration / 2, End: duration, Label: "SPEAKER_01"},
	}

	log.Printf("🗣  diarize: size=%d duration=%.2fs turns=%d", len(body), duration, len(turns))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"turns": turns})
}

func embedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusBadRequest)
		return
	}

	// Deterministic pseudo-embedding derived from the payload length so
	// identical spans cluster together.
	embedding := make([]float64, 16)
	seed := float64(len(body) % 977)
	for i := range embedding {
		embedding[i] = math.Sin(seed + float64(i))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"embedding": embedding})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)
	http.HandleFunc("/score", scoreHandler)
	http.HandleFunc("/diarize", diarizeHandler)
	http.HandleFunc("/embed", embedHandler)
	http.HandleFunc("/health", healthHandler)

	port := ":9000"
	log.Printf("🚀 Test Model Server starting on port %s", port)
	log.Printf("📡 Endpoints: /transcribe /score /diarize /embed /health")
	log.Println("💡 Point asr/vad/diarizer/embedding endpoints at http://localhost:9000")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
