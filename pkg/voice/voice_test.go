package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aibridge/aibridge/pkg/ipc"
	"github.com/aibridge/aibridge/pkg/providers"
)

// fakeChannel scripts ipc command responses and lets tests push events.
type fakeChannel struct {
	handle    func(command string, args any) (any, error)
	listeners map[string][]func(json.RawMessage)
}

func newFakeChannel(handle func(command string, args any) (any, error)) *fakeChannel {
	return &fakeChannel{handle: handle, listeners: make(map[string][]func(json.RawMessage))}
}

func (f *fakeChannel) Invoke(_ context.Context, command string, args any) (json.RawMessage, error) {
	result, err := f.handle(command, args)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	return raw, err
}

func (f *fakeChannel) Listen(event string, handler func(json.RawMessage)) (ipc.Unsubscribe, error) {
	f.listeners[event] = append(f.listeners[event], handler)
	return func() {}, nil
}

func (f *fakeChannel) push(event string, payload string) {
	for _, h := range f.listeners[event] {
		h(json.RawMessage(payload))
	}
}

func TestKokoroSynthesizeRoundTrip(t *testing.T) {
	audio := []byte("fake-wav-bytes")
	var gotArgs kokoroSynthesizeArgs

	ch := newFakeChannel(func(command string, args any) (any, error) {
		if command != "tts.synthesize" {
			t.Errorf("command = %s", command)
		}
		gotArgs = args.(kokoroSynthesizeArgs)
		return kokoroSynthesizeResult{
			Audio:      base64.StdEncoding.EncodeToString(audio),
			SampleRate: kokoroSampleRate,
		}, nil
	})

	k := NewKokoroLocal(ch, "")
	out, err := k.Synthesize(context.Background(), "hello", "am_adam", providers.VoiceSettings{Speed: 1.2, Pitch: 0, Volume: 0})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(out) != string(audio) {
		t.Errorf("audio = %q", out)
	}
	if gotArgs.Model != KokoroModel || gotArgs.Voice != "am_adam" || gotArgs.Speed != 1.2 {
		t.Errorf("args = %+v", gotArgs)
	}
	if gotArgs.SampleRate != kokoroSampleRate {
		t.Errorf("sampleRate = %d, want %d", gotArgs.SampleRate, kokoroSampleRate)
	}
}

func TestKokoroRuntimeErrorSurfaces(t *testing.T) {
	ch := newFakeChannel(func(string, any) (any, error) {
		return nil, fmt.Errorf("model not loaded")
	})
	k := NewKokoroLocal(ch, "")
	if _, err := k.Synthesize(context.Background(), "x", "af", providers.DefaultVoiceSettings()); err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("err = %v", err)
	}
}

func TestListSpeechModelsAppendsEspeak(t *testing.T) {
	ch := newFakeChannel(func(command string, _ any) (any, error) {
		switch command {
		case "tts.list_models":
			return []runtimeModel{{ID: KokoroModel, Name: "Kokoro 82M", Size: 330_000_000}}, nil
		case "tts.list_installed_models":
			return []string{KokoroModel}, nil
		}
		return nil, fmt.Errorf("unexpected command %s", command)
	})

	models, err := ListSpeechModels(context.Background(), ch)
	if err != nil {
		t.Fatalf("ListSpeechModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want kokoro + espeak", len(models))
	}
	if !models[0].Installed {
		t.Error("installed list not merged into model listing")
	}
	last := models[len(models)-1]
	if last.ID != EspeakModel || !last.Installed {
		t.Errorf("fallback entry = %+v, espeak must always be installed", last)
	}
}

func TestLoadSpeechModelSkipsEspeak(t *testing.T) {
	ch := newFakeChannel(func(command string, _ any) (any, error) {
		t.Errorf("unexpected invoke %s, espeak needs no download", command)
		return nil, nil
	})
	if err := LoadSpeechModel(context.Background(), ch, EspeakModel); err != nil {
		t.Fatalf("LoadSpeechModel: %v", err)
	}
}

func TestProgressTupleDecoding(t *testing.T) {
	ch := newFakeChannel(nil)

	var got []providers.ProgressEvent
	unsub, err := SubscribeSpeechProgress(ch, func(ev providers.ProgressEvent) {
		got = append(got, ev)
	})
	if err != nil {
		t.Fatalf("SubscribeSpeechProgress: %v", err)
	}
	defer unsub()

	ch.push("tts:load-model-progress", `[false, "Kokoro-82M.onnx", 42.5, 330000000, 140250000]`)
	ch.push("tts:load-model-progress", `[true, "Kokoro-82M.onnx", 100]`)
	ch.push("tts:load-model-progress", `"not a tuple"`)

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (malformed dropped)", len(got))
	}
	first := got[0]
	if first.Done || first.Filename != "Kokoro-82M.onnx" || first.Progress != 42.5 ||
		first.TotalSize != 330000000 || first.CurrentSize != 140250000 {
		t.Errorf("first event = %+v", first)
	}
	if !got[1].Done || got[1].Progress != 100 {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestWhisperLocalTranscribe(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(audioPath, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	ch := newFakeChannel(func(command string, args any) (any, error) {
		if command != "stt.transcribe" {
			t.Errorf("command = %s", command)
		}
		m := args.(map[string]any)
		if m["filename"] != "clip.wav" {
			t.Errorf("filename = %v", m["filename"])
		}
		decoded, err := base64.StdEncoding.DecodeString(m["audio"].(string))
		if err != nil || string(decoded) != "RIFFdata" {
			t.Errorf("audio payload = %v (%v)", m["audio"], err)
		}
		return whisperTranscribeResult{Text: "hello world", Language: "en", Duration: 1.5}, nil
	})

	w := NewWhisperLocal(ch, "tiny.en")
	got, err := w.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello world" || got.Language != "en" || got.Duration != 1.5 {
		t.Errorf("transcription = %+v", got)
	}
}

func TestTranscriberHTTPMultipart(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "meeting.wav")
	if err := os.WriteFile(audioPath, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk_test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model field = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "meeting.wav" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "quarterly numbers", "language": "english", "duration": 4.2}`))
	}))
	defer server.Close()

	tr := NewTranscriberHTTP(server.URL, "gsk_test", "whisper-large-v3", server.Client())
	got, err := tr.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "quarterly numbers" || got.Duration != 4.2 {
		t.Errorf("transcription = %+v", got)
	}
}

func TestSpeechHTTPSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "tts-1" || req.Voice != "nova" || req.Input != "hi" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	s := NewSpeechHTTP(server.URL, "sk-test", "", server.Client())
	audio, err := s.Synthesize(context.Background(), "hi", "nova", providers.DefaultVoiceSettings())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
}

func TestElevenLabsSynthesizeAndVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "xi-test" {
			t.Errorf("xi-api-key = %q", got)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/text-to-speech/"):
			if r.URL.Path != "/text-to-speech/21m00Tcm4TlvDq8ikWAM" {
				t.Errorf("path = %s", r.URL.Path)
			}
			_, _ = w.Write([]byte("mp3-bytes"))
		case r.URL.Path == "/voices":
			_, _ = w.Write([]byte(`{"voices": [{"voice_id": "21m00Tcm4TlvDq8ikWAM", "name": "Rachel", "labels": {"gender": "female"}}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	e := NewElevenLabs("xi-test", "", server.Client())
	e.apiBase = server.URL

	audio, err := e.Synthesize(context.Background(), "hello", "21m00Tcm4TlvDq8ikWAM", providers.DefaultVoiceSettings())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}

	voices, err := e.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Rachel" || voices[0].Gender != "female" {
		t.Errorf("voices = %+v", voices)
	}

	if _, err := e.Synthesize(context.Background(), "x", "", providers.DefaultVoiceSettings()); err == nil {
		t.Error("empty voice accepted")
	}
}
