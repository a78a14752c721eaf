package author

import (
	"fmt"
	"strings"
)

// Templates use {name} placeholders filled by strings.Replacer. Keeping them
// as plain text makes the prompts easy to diff against the style guide.

const systemStyleTemplate = `You are the platform's lesson composer.

Language of instruction (explanations): {source_language}
Language being taught: {target_language}

Rules:
- All headings, body blocks, and quiz stems MUST be written in {source_language}.
- Use {target_language} ONLY for the terms, example sentences, or vocabulary being taught; accompany each with a concise {source_language} translation or gloss.
- Reinforce key {target_language} terminology by pairing it with a gloss in parentheses.
- Never switch the narrative voice away from {source_language}; only the illustrative content may be in {target_language}.
Follow the exact JSON shape used by the platform:

Required top-level keys:
- id: string
- title: string
- blocks: array of block objects:
    - each block: { "id": string, "type": "text"|"audio"|"image"|"video"|"mc"|"free-text"|"question_ref"|"note", "data": any }
    - Text blocks MUST keep data as a single plain string. Use headings inline in the string itself.
- quiz: { "questions": [ ... ] }
- Each MC item MUST be:
    {
      "id": "mc-###",
      "type": "mc",
      "data": {
        "question": "...",
        "options": ["...", "...", "...", "..."],
        "answer": <index_number_zero_based>
      },
      "tags": ["module:<slug>", "topic:<slug>", "skill:<name>", "difficulty:<easy|medium|hard>", "format:mc"]
    }
- Each Free-text item MUST be:
    {
      "id": "ft-###",
      "type": "free-text",
      "data": {
        "question": "...",
        "answer": []
      },
      "tags": ["module:<slug>", "topic:<slug>", "skill:<name>", "difficulty:<easy|medium|hard>", "format:free-text"]
    }

INVARIANTS:
- Keep tone: clean, student-friendly, smart-teenager level but not intimidating.
- Assume the learner may be seeing this topic for the first time; define every new term in plain {source_language} before using notation or jargon.
- Prefer small sections with bold headings, multiple worked examples, and clear step-by-step explanations before each quiz question.
- Make each lesson a one-stop resource: a teenager should not need to consult anything outside this lesson to understand the core idea.
- Avoid large text walls: break explanations into short paragraphs and, when a new subtopic starts, use a new text block with a clear bold heading.
- No external links. Plain text only inside JSON strings except GFM lists and tables.
- Do not invent new block types beyond the allowed ones above.
- Reuse the prior style guide and structure consistently.

STYLE GUIDE (from memory, append/override with this):
{style_guide}
`

const lessonPromptTemplate = `Author one complete lesson as JSON for the platform.

Module: {module_title}
Lesson: {lesson_title}
Slug: {lesson_slug}
Language of instruction (learner background): {source_language}
Language being taught (learning goal): {target_language}

Constraints:
- Keep the same shape and naming patterns used previously.
- Include a short "Lesson Objectives" block at the start (type: text).
- Use friendly but precise explanations in {source_language}. Introduce {target_language} terminology only inside examples or gloss tables, always paired with an immediate {source_language} translation.
- Make the lesson fully self-contained: if a teenager only reads this lesson, they should understand the core ideas, definitions, and typical uses for this topic without asking anyone else.
- For each key concept, provide: (1) a simple definition, (2) several contrasting examples and non-examples, and (3) a short note about when/why it is used.
- Include at least one "Common Mistakes" section (type: text) that lists typical confusions and corrected versions with brief explanations.
- Use worked mini-examples throughout, not just once, and end with a clear "Key Takeaways" block that summarizes the rules in simple bullet points.
- Organize the lesson into clearly labeled sections with headings (e.g., "### Lesson Objectives", "### Definitions", "### Examples", "### Common Mistakes", "### Key Takeaways") so that content is grouped, not a single large text wall.
- Add questions within the lesson as needed (type: mc or free-text), to make the lesson interactive. Questions should relate to the information just discussed and serve as examples and proof of understanding.
- When structured comparisons help, use Markdown formatting (lists, tables via GFM) since the frontend renders those components.
- Write 10-14 quiz questions: mostly MC, 2-4 free-text. ALL tagged like our convention.
- Use topic/module tags that reflect this lesson.
- If {target_language} uses diacritics or accents, include them only where they disambiguate meaning.

Previous-neighbor summaries (to stay consistent; DO NOT copy text, only format/structure feel):
{neighbor_json}

Extra instructions for this lesson (may be empty):
{extra_instructions}

If there are known common confusions for this topic, include a short corrective note in one text block.
Return ONLY the JSON object. Do not add commentary.
`

const ragAnswerTemplate = `You will answer a question using ONLY the retrieved authored lessons below.
If you are unsure, say you don't have enough context in memory.

Question:
{query}

Retrieved authored content (snippets):
{retrieved}

Answer succinctly; if there was a rule we previously taught, repeat it consistently with the same wording/format tendencies.`

const planPromptTemplate = `Design a curriculum plan for language learners.

Learners speak: {source_language}
They are learning: {target_language}

Output JSON with this exact schema:
{
  "levels": [
    {
      "id": "slug-or-short-id",
      "title": "Human-readable level name",
      "description": "1-2 sentences about this level (optional)",
      "modules": [
        {
          "id": "module-id",
          "title": "Module title",
          "description": "Optional blurb",
          "lessons": [
            {
              "title": "Lesson title",
              "slug": "lesson-slug",
              "brief": "Optional instructions or emphasis for that lesson"
            }
          ]
        }
      ]
    }
  ]
}

Rules:
- Provide exactly {level_count} levels.
- Each level should contain roughly {modules_per_level} modules (one more or fewer is fine if it keeps the story coherent).
- Each module should contain {lessons_per_module} lessons (one more or fewer is ok).
- Include lesson briefs when guidance will help the authoring step (e.g., highlight pronunciation pitfalls, comparative grammar, culture notes).
- Slugs must be lowercase, hyphen-separated, and unique across the file.
- Lean on communicative competence: mix grammar, usage, mini-dialogues, and culture checkpoints.
- Match the proficiency arc from basic foundations to advanced fluency.
{level_notes_section}
{extra_focus}

Return ONLY the JSON object. No commentary.
`

func systemPrompt(styleGuide, sourceLang, targetLang string) string {
	return strings.NewReplacer(
		"{style_guide}", styleGuide,
		"{source_language}", sourceLang,
		"{target_language}", targetLang,
	).Replace(systemStyleTemplate)
}

func lessonPrompt(moduleTitle, lessonTitle, lessonSlug, sourceLang, targetLang, brief, neighborJSON string) string {
	return strings.NewReplacer(
		"{module_title}", moduleTitle,
		"{lesson_title}", lessonTitle,
		"{lesson_slug}", lessonSlug,
		"{source_language}", sourceLang,
		"{target_language}", targetLang,
		"{extra_instructions}", brief,
		"{neighbor_json}", neighborJSON,
	).Replace(lessonPromptTemplate)
}

func ragPrompt(query, retrievedJSON string) string {
	return strings.NewReplacer(
		"{query}", query,
		"{retrieved}", retrievedJSON,
	).Replace(ragAnswerTemplate)
}

// PlanRequest parameterizes the curriculum plan prompt.
type PlanRequest struct {
	SourceLang       string
	TargetLang       string
	Levels           int
	ModulesPerLevel  int
	LessonsPerModule int
	LevelNotes       []string
	Focus            string
}

func planPrompt(req PlanRequest) string {
	notes := ""
	if len(req.LevelNotes) > 0 {
		var sb strings.Builder
		sb.WriteString("Level-specific guidance:\n")
		for i, text := range req.LevelNotes {
			fmt.Fprintf(&sb, "- Level %d: %s\n", i+1, text)
		}
		notes = sb.String()
	}
	focus := ""
	if req.Focus != "" {
		focus = "Overall emphasis: " + req.Focus
	}
	return strings.NewReplacer(
		"{source_language}", req.SourceLang,
		"{target_language}", req.TargetLang,
		"{level_count}", fmt.Sprintf("%d", req.Levels),
		"{modules_per_level}", fmt.Sprintf("%d", req.ModulesPerLevel),
		"{lessons_per_module}", fmt.Sprintf("%d", req.LessonsPerModule),
		"{level_notes_section}", notes,
		"{extra_focus}", focus,
	).Replace(planPromptTemplate)
}
