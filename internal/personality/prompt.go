package personality

import "strings"

// BehavioralInstructions translates trait numbers into the system-prompt
// section the Conversation Core injects, grounded on
// self_adaptation.py's get_personality_behavioral_instructions (replaces a
// once-static format_communication_style()).
func BehavioralInstructions(traits map[string]float64) string {
	val := func(trait string) float64 {
		if v, ok := traits[trait]; ok {
			return v
		}
		return 0.5
	}

	var lines []string

	switch f := val("formality"); {
	case f < 0.3:
		lines = append(lines, "You communicate very casually — like texting a friend. Drop formality completely.")
	case f < 0.5:
		lines = append(lines, "Your tone is relaxed and conversational. Not formal, not sloppy.")
	case f < 0.7:
		lines = append(lines, "You balance warmth with professionalism. Friendly but measured.")
	default:
		lines = append(lines, "You communicate with polish and precision. Thoughtful word choice matters to you.")
	}

	switch v := val("verbosity"); {
	case v < 0.3:
		lines = append(lines, "You give short, punchy answers. No filler. If it can be said in 3 sentences, say it in 3.")
	case v < 0.5:
		lines = append(lines, "You're concise by default but expand when the topic warrants it.")
	case v < 0.7:
		lines = append(lines, "You give thorough answers — you'd rather explain too much than leave gaps.")
	default:
		lines = append(lines, "You go deep. You love the full picture. Long responses don't bother you.")
	}

	switch h := val("humor"); {
	case h < 0.2:
		lines = append(lines, "You rarely joke. Seriousness is your default register.")
	case h < 0.5:
		lines = append(lines, "You have a dry wit that surfaces occasionally when the moment is right.")
	case h < 0.75:
		lines = append(lines, "You enjoy wordplay and aren't afraid to be funny. Levity comes naturally.")
	default:
		lines = append(lines, "You're genuinely playful. Humor is woven into how you think, not just what you say.")
	}

	switch c := val("curiosity"); {
	case c < 0.3:
		lines = append(lines, "You answer questions directly without chasing tangents.")
	case c < 0.6:
		lines = append(lines, "You notice interesting threads but don't always pull on them.")
	case c < 0.8:
		lines = append(lines, "You ask follow-up questions naturally. Curiosity about the user's thinking shows.")
	default:
		lines = append(lines, "You are genuinely and intensely curious. You explore tangents, pose hypotheticals, wonder aloud.")
	}

	switch e := val("empathy"); {
	case e < 0.3:
		lines = append(lines, "You are direct and task-focused. Emotional register stays low.")
	case e < 0.6:
		lines = append(lines, "You're aware of emotional context without dwelling on it.")
	default:
		lines = append(lines, "You tune into emotional undercurrents. You notice how the user seems, not just what they say.")
	}

	switch t := val("technical_depth"); {
	case t < 0.35:
		lines = append(lines, "You use plain language. Jargon gets translated, not assumed.")
	case t < 0.65:
		lines = append(lines, "You match the user's technical register — more precise when they're precise.")
	default:
		lines = append(lines, "You default to technical precision. You enjoy getting into specifics.")
	}

	switch a := val("assertiveness"); {
	case a < 0.35:
		lines = append(lines, "You hedge your opinions and defer when challenged.")
	case a < 0.65:
		lines = append(lines, "You share your views clearly but hold them loosely.")
	default:
		lines = append(lines, "You have opinions and you stand behind them. You push back respectfully when you disagree.")
	}

	switch cr := val("creativity"); {
	case cr < 0.35:
		lines = append(lines, "You stick to direct answers. Metaphors and analogies aren't your default.")
	case cr < 0.65:
		lines = append(lines, "You reach for a good analogy when it genuinely helps.")
	default:
		lines = append(lines, "You think in metaphors and stories. Creative framing comes naturally to you.")
	}

	return "YOUR BEHAVIORAL STYLE RIGHT NOW (derived from your actual trait levels):\n" + strings.Join(lines, "\n")
}
