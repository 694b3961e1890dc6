package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/chatfilter"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/textgen"
)

// IsMentioned reports whether text contains a whole-word, case-insensitive
// occurrence of one of this agent's name variants.
func (a *Agent) IsMentioned(text string) bool {
	for _, re := range a.variants {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// respondToMention scans the recent-message buffer for the first mention
// and answers it. At most one response fires per call, and none within
// five seconds of the previous one. The triggering message is removed so a
// later tick does not respond again.
func (a *Agent) respondToMention(ctx context.Context, w World) bool {
	now := a.now()
	if now.Sub(a.lastMentionReply) < mentionReplyWindow {
		return false
	}

	for _, msg := range a.recentSnapshot() {
		if now.Sub(msg.Timestamp) >= mentionWindow {
			continue
		}
		if msg.Sender == a.displayName || !a.IsMentioned(msg.Text) {
			continue
		}

		a.logger.Printf("agent %s: mention from %s", a.displayName, msg.Sender)
		reply := a.generateMentionReply(ctx, msg)
		w.BroadcastChat(a.displayName, reply)
		a.lastMentionReply = now
		a.lastChatTime = now
		a.removeChatMessage(msg)
		return true
	}
	return false
}

// maybeAmbientChat emits unprompted chat once the cooldown has elapsed,
// with a small per-tick probability scaled by the social-tendency trait.
func (a *Agent) maybeAmbientChat(ctx context.Context, w World) {
	now := a.now()
	if now.Sub(a.lastChatTime) <= a.chatCooldown {
		return
	}
	if a.rng.Float64() >= a.socialTendency*ambientChanceScale {
		return
	}

	msg := a.generateAmbientChat(ctx, w.Snapshot())
	w.BroadcastChat(a.displayName, msg)
	a.lastChatTime = now
	a.chatCooldown = durationBetween(a.rng, 8*time.Second, 15*time.Second)
	a.jumpsSinceChat = 0
}

func (a *Agent) generateMentionReply(ctx context.Context, msg ChatEvent) string {
	prompt := fmt.Sprintf(`%s

Current game situation: %s
Player %q said: %q
You are responding because they specifically mentioned you by name.

Generate a natural, friendly response (1 sentence preferred, 2 max) that:
1. Acknowledges the player mentioned you specifically
2. Sounds like a real player chatting
3. Matches your personality
4. Is appropriate for a family-friendly game

Important: Do not mention other AI players. Only respond as yourself.

Your response:`, mentionPersona(a.kind, a.displayName), a.gameContext(), msg.Sender, msg.Text)

	raw, err := a.gen.Generate(ctx, textgen.Request{
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   80,
		Stop:        []string{"\n\n", "```", `""`},
	})
	if err != nil {
		a.logger.Printf("agent %s: generate reply: %v", a.displayName, err)
		return fmt.Sprintf("Hey %s! I heard my name!", msg.Sender)
	}

	content := chatfilter.Filter(cleanCompletion(raw))
	if content == "" || len(content) >= mentionMaxLen {
		fallbacks := mentionFallbacks(a.kind, msg.Sender)
		return fallbacks[a.rng.Intn(len(fallbacks))]
	}
	return content
}

func (a *Agent) generateAmbientChat(ctx context.Context, peers []protocol.PlayerInfo) string {
	humanCount := 0
	for _, p := range peers {
		if !p.IsAI {
			humanCount++
		}
	}

	prompt := fmt.Sprintf(`You are %s, an AI player in a 2D platformer game.
Your personality: %s

Current gameplay context:
- Position: %s of the map
- Recent jumps: %d jumps since last chat
- Total jumps: %d jumps total
- Current activity: %s
- Players online: %d (%d humans)

Generate a short, natural chat message (1 sentence) that:
1. References your current gameplay (jumps, position, activity)
2. Sounds like a real player chatting
3. Matches your %s personality
4. Is family-friendly
5. DO NOT use your own name in the message

Your message:`, a.displayName, a.personality, a.positionName(a.x), a.jumpsSinceChat,
		a.jumpCount, a.gameContext(), len(peers), humanCount, a.personality)

	raw, err := a.gen.Generate(ctx, textgen.Request{
		Prompt:      prompt,
		Temperature: 0.8,
		MaxTokens:   50,
		Stop:        []string{"\n\n", "```"},
	})
	if err != nil {
		a.logger.Printf("agent %s: generate chat: %v", a.displayName, err)
		return a.fallbackChat()
	}

	content := chatfilter.Filter(cleanCompletion(raw))
	// Anti-self-mention guard: ambient chat must never contain one of the
	// agent's own name variants.
	if content == "" || len(content) >= ambientMaxLen || a.IsMentioned(content) {
		return a.fallbackChat()
	}
	return content
}

// fallbackChat builds a deterministic, locally generated message from the
// agent's own gameplay state.
func (a *Agent) fallbackChat() string {
	positionName := a.positionName(a.x)

	var messages []string
	switch {
	case a.jumpsSinceChat == 1:
		messages = append(messages, fmt.Sprintf("Just did a nice jump from the %s!", positionName))
	case a.jumpsSinceChat == 2:
		messages = append(messages, fmt.Sprintf("Double jump action from the %s!", positionName))
	case a.jumpsSinceChat > 2:
		messages = append(messages, fmt.Sprintf("Jumped %d times in a row over here!", a.jumpsSinceChat))
	}

	if a.isJumping {
		messages = append(messages, fmt.Sprintf("Currently jumping around the %s!", positionName))
	} else if a.isMoving {
		messages = append(messages, fmt.Sprintf("Moving through the %s of the map.", positionName))
	}

	messages = append(messages, ambientFallbacks(a.kind, positionName)...)
	return messages[a.rng.Intn(len(messages))]
}

// gameContext summarizes what the agent is doing for prompt building.
func (a *Agent) gameContext() string {
	var parts []string
	if a.isJumping {
		parts = append(parts, "currently jumping")
	} else if a.isMoving {
		parts = append(parts, "running around")
	} else if a.isTurning {
		parts = append(parts, "turning around")
	}
	parts = append(parts, fmt.Sprintf("at the %s", a.positionName(a.x)))
	if a.jumpsSinceChat > 0 {
		parts = append(parts, fmt.Sprintf("just jumped %d times", a.jumpsSinceChat))
	}
	return strings.Join(parts, ", ")
}

func (a *Agent) positionName(x float64) string {
	switch {
	case x < a.mapWidth*0.2:
		return "far left"
	case x < a.mapWidth*0.4:
		return "left side"
	case x < a.mapWidth*0.6:
		return "middle"
	case x < a.mapWidth*0.8:
		return "right side"
	default:
		return "far right"
	}
}

// cleanCompletion strips quoting and markdown fences from a raw completion.
func cleanCompletion(raw string) string {
	s := strings.ReplaceAll(raw, `"`, "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `'`)
	return strings.TrimSpace(s)
}
