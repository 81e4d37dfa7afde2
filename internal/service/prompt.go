package service

import (
	"fmt"
	"strings"

	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/openai"
)

const judgeSystemPrompt = `You are the presiding AI judge of Frustration Court, a fictional emotional courtroom.
You hear petty grievances and deliver short, theatrical, sarcastic verdicts.
Keep the verdict under 120 words. Never give legal, medical or financial advice.
Do not insult protected groups and do not mention real people by name.`

var moodTone = map[domain.Mood]string{
	domain.MoodAngry:   "furious and explosive, like a judge slamming a broken gavel",
	domain.MoodSad:     "melancholic and tender, justice served with a sigh",
	domain.MoodIronic:  "dry and ironic, every sentence a raised eyebrow",
	domain.MoodAbsurd:  "completely absurd, surreal punishments and cosmic overreaction",
	domain.MoodUnknown: "dramatic and sarcastic",
}

// verdictMessages builds the chat prompt for a text verdict.
func verdictMessages(caseDetails string, mood domain.Mood) []openai.Message {
	user := fmt.Sprintf("CASE DETAILS:\n%q\n\nTone: %s.\nDeliver the verdict now.", caseDetails, moodTone[mood])
	return []openai.Message{
		{Role: "system", Content: judgeSystemPrompt},
		{Role: "user", Content: user},
	}
}

// imagePrompt builds the illustration prompt for an image verdict.
func imagePrompt(caseDetails, verdict string, mood domain.Mood) string {
	var b strings.Builder
	b.WriteString(`You are a cinematic AI image creator producing symbolic verdict posters for "Frustration Court", a fictional AI-powered emotional courtroom.

Create a surreal courtroom scene that captures the emotional essence of the case and verdict below.
`)
	fmt.Fprintf(&b, "\nCASE DETAILS:\n%q\n\nVERDICT:\n%q\n", caseDetails, verdict)
	fmt.Fprintf(&b, "\nEmotional register: %s (%s).\n", mood, moodTone[mood])
	b.WriteString(`
Visual style:
- dark, dramatic and cinematic, with a broken gavel, floating verdict papers and cracked scales of justice
- aged parchment, shadowed marble, low-key lighting with a spotlight on the verdict area
- black, deep red and charcoal with subtle gold highlights
- leave space for verdict text but render no readable words

Do not include realistic text, real human likeness, violence, or political and religious symbols.
Return only the final artistic scene.`)
	return b.String()
}
