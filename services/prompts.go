// services/prompts.go - Prompt Word Bank
package services

import (
	"bufio"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// DefaultPromptWordCount is how many words one test prompt carries; long
// enough that nobody clears it inside the timed window.
const DefaultPromptWordCount = 130

var defaultWordBank = []string{
	"swift", "echo", "whisper", "galaxy", "ember", "quantum", "matrix", "journey",
	"delta", "aurora", "nebula", "serene", "kinetic", "cipher", "vertex", "cascade",
	"luminous", "zenith", "vector", "sonic", "catalyst", "apex", "fusion", "horizon",
	"vortex", "pulse", "spectrum", "crystal", "radiant", "velocity", "binary",
	"signal", "framework", "syntax", "dynamic", "network", "module", "payload",
	"drift", "momentum", "orbital", "plasma", "turbo", "voltage", "snippet",
	"cursor", "keystroke", "compile", "iterate", "quantify", "program", "design",
	"pattern", "render", "texture", "canvas", "glyph", "sprint", "refactor",
	"optimize", "deploy", "commit", "branch", "merge", "stack", "queue", "lambda",
	"async", "await", "promise", "stream", "buffer", "packet", "layout", "schema",
	"trigger", "session", "cluster", "static", "sprite", "glitch", "vivid", "optic",
	"granite", "marble", "saffron", "amber", "sapphire", "onyx", "silver", "carbon",
	"feather", "hollow", "silent", "effort", "focus", "tempo", "drizzle", "thunder",
	"storm", "orbit", "meteor", "rocket", "launch", "stellar", "planet", "comet",
	"glimmer", "flux", "impact", "legend", "bright", "cosmic", "inertia", "gravity",
}

// PromptBank holds the word list prompts are drawn from.
type PromptBank struct {
	mu    sync.RWMutex
	words []string
}

// LoadPromptBank reads a whitespace-separated word list. When the file is
// missing it is created from the built-in bank, mirroring first-run setup.
func LoadPromptBank(path string) (*PromptBank, error) {
	bank := &PromptBank{}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Word bank %s not found, creating it with defaults...", path)
		if err := writeDefaultWordBank(path); err != nil {
			return nil, fmt.Errorf("failed to create word bank: %w", err)
		}
		bank.words = append([]string(nil), defaultWordBank...)
		return bank, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word bank %s: %w", path, err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word bank %s: %w", path, err)
	}

	if len(words) == 0 {
		log.Printf("Word bank %s is empty, falling back to defaults", path)
		words = append([]string(nil), defaultWordBank...)
	}

	bank.words = words
	log.Printf("Loaded %d words into the prompt bank", len(words))
	return bank, nil
}

// Generate draws count words uniformly at random, with repetition, matching
// how prompts were generated in the original game.
func (b *PromptBank) Generate(count int) []string {
	if count <= 0 {
		count = DefaultPromptWordCount
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	prompt := make([]string, count)
	for i := range prompt {
		prompt[i] = b.words[rand.Intn(len(b.words))]
	}
	return prompt
}

// Size reports how many words are loaded.
func (b *PromptBank) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.words)
}

func writeDefaultWordBank(path string) error {
	return os.WriteFile(path, []byte(strings.Join(defaultWordBank, "\n")+"\n"), 0644)
}
