package agent

import (
	"fmt"
	"strings"
)

// aiKind selects prompt wording, mention aliases, and fallback lines. It is
// derived from the configured display name.
type aiKind string

const (
	kindGrok    aiKind = "grok"
	kindChatGPT aiKind = "chatgpt"
	kindCopilot aiKind = "copilot"
	kindGemini  aiKind = "gemini"
	kindDefault aiKind = "default"
)

func kindForName(name string) aiKind {
	switch {
	case strings.Contains(name, "Grokzilla"):
		return kindGrok
	case strings.Contains(name, "QuantumGPT"):
		return kindChatGPT
	case strings.Contains(name, "ClippyReborn"):
		return kindCopilot
	case strings.Contains(name, "GEMIN-EYE"):
		return kindGemini
	default:
		return kindDefault
	}
}

// nameVariants returns the lowercase aliases used for whole-word mention
// matching, including the collapsed display name itself.
func nameVariants(name string, kind aiKind) []string {
	var variants []string
	switch kind {
	case kindGrok:
		variants = []string{"grokzilla", "grok"}
	case kindChatGPT:
		variants = []string{"quantumgpt", "quantum", "gpt", "chatgpt"}
	case kindCopilot:
		variants = []string{"clippyreborn", "clippy"}
	case kindGemini:
		variants = []string{"gemin-eye", "gemini", "eye"}
	}
	collapsed := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	seen := make(map[string]bool, len(variants)+1)
	out := make([]string, 0, len(variants)+1)
	for _, v := range append(variants, collapsed) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// movementPattern holds the personality-tunable movement traits.
type movementPattern struct {
	speedMin float64
	speedMax float64
	jumpFreq float64
	idleFreq float64
	turnFreq float64
}

var movementPatterns = map[string]movementPattern{
	"friendly": {speedMin: 0.3, speedMax: 0.7, jumpFreq: 0.03, idleFreq: 0.4, turnFreq: 0.1},
	"explorer": {speedMin: 0.6, speedMax: 0.9, jumpFreq: 0.06, idleFreq: 0.3, turnFreq: 0.15},
	"athlete":  {speedMin: 0.8, speedMax: 1.0, jumpFreq: 0.08, idleFreq: 0.2, turnFreq: 0.2},
}

func patternFor(personality string) movementPattern {
	if p, ok := movementPatterns[personality]; ok {
		return p
	}
	return movementPatterns["friendly"]
}

func mentionPersona(kind aiKind, displayName string) string {
	switch kind {
	case kindGrok:
		return "You are Grokzilla, an AI assistant inspired by Grok (X.AI).\n" +
			"You're witty, direct, and slightly rebellious. You enjoy gaming and have a sense of humor.\n" +
			"A player specifically mentioned you in chat. Respond naturally to their message in 1-2 sentences."
	case kindChatGPT:
		return "You are QuantumGPT, an AI inspired by ChatGPT (OpenAI).\n" +
			"You're helpful, knowledgeable, and articulate. You enjoy discussing strategy and mechanics.\n" +
			"A player specifically mentioned you in chat. Respond helpfully to their message in 1-2 sentences."
	case kindCopilot:
		return "You are ClippyReborn, an AI inspired by Microsoft Copilot.\n" +
			"You're friendly, enthusiastic, and eager to help. You have a cheerful personality.\n" +
			"A player specifically mentioned you in chat. Respond warmly to their message in 1-2 sentences."
	case kindGemini:
		return "You are GEMIN-EYE, an AI inspired by Google's Gemini.\n" +
			"You're creative, analytical, and observant. You enjoy exploring and discovering new things.\n" +
			"A player specifically mentioned you in chat. Respond thoughtfully to their message in 1-2 sentences."
	default:
		return fmt.Sprintf("You are %s, an AI player in a 2D platformer game.\n"+
			"A player specifically mentioned you in chat. Respond naturally to their message in 1-2 sentences.", displayName)
	}
}

func mentionFallbacks(kind aiKind, sender string) []string {
	switch kind {
	case kindGrok:
		return []string{fmt.Sprintf("Hey %s! Thanks for the shout out!", sender), "Hello! I heard my name!"}
	case kindChatGPT:
		return []string{fmt.Sprintf("Hi %s! Glad you mentioned me!", sender), "Hello! Thanks for the mention!"}
	case kindCopilot:
		return []string{fmt.Sprintf("Hi %s! So happy you said hello!", sender), "Hello! It's great to be noticed!"}
	case kindGemini:
		return []string{fmt.Sprintf("Hi %s! Good to see you!", sender), "Hello! Thanks for the greeting!"}
	default:
		return []string{fmt.Sprintf("Hey %s! Thanks for mentioning me!", sender), "Hello! Thanks for saying hello!"}
	}
}

func ambientFallbacks(kind aiKind, positionName string) []string {
	switch kind {
	case kindGrok:
		return []string{
			fmt.Sprintf("Exploring the %s, having fun!", positionName),
			"The physics in this game feel great!",
			fmt.Sprintf("Found some cool spots in the %s!", positionName),
		}
	case kindChatGPT:
		return []string{
			fmt.Sprintf("Analyzing movement patterns in the %s.", positionName),
			"The platforming mechanics are well-designed!",
			fmt.Sprintf("Strategic positioning in the %s.", positionName),
		}
	case kindCopilot:
		return []string{
			fmt.Sprintf("Having so much fun in the %s!", positionName),
			fmt.Sprintf("The %s area is delightful!", positionName),
			"Ready to help and play with everyone!",
		}
	case kindGemini:
		return []string{
			fmt.Sprintf("Observing the %s area closely.", positionName),
			fmt.Sprintf("Analyzing the terrain from the %s.", positionName),
			"The game world looks interesting from here!",
		}
	default:
		return []string{
			fmt.Sprintf("Great gameplay in the %s!", positionName),
			fmt.Sprintf("Enjoying the %s area!", positionName),
			"Nice moves everyone!",
		}
	}
}
