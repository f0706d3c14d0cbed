package scriptgen

const scriptSystemPrompt = `You are a scriptwriter for short vertical educational videos. You write tight, engaging dialogue between two recurring characters and you respond with JSON only.`

// scriptPromptTemplate is rendered with text/template.
const scriptPromptTemplate = `Create an engaging dialogue between two characters discussing the given topic.

CHARACTERS:
- {{.QuestionerName}} (Questioner): Asks thoughtful questions, expresses curiosity
- {{.ExplainerName}} (Explainer): Provides clear, concise explanations

TOPIC: {{.Topic}}
STYLE: {{.Style}}
TARGET DURATION: {{.TargetDuration}} seconds (approximately {{.LineCount}} exchanges)
{{if .DocumentContext}}
SOURCE DOCUMENT:
{{.DocumentContext}}
{{end}}
REQUIREMENTS:
1. Start with {{.QuestionerName}} asking an engaging opening question
2. Alternate between questioner and explainer
3. Keep each line under 20 words for readability
4. Use conversational, accessible language
5. End with a memorable takeaway or call-to-action
6. Include pose suggestions for visual variety (standing, thinking, pointing, excited)

OUTPUT FORMAT (JSON):
{
  "lines": [
    {"speaker_role": "questioner", "speaker_name": "{{.QuestionerName}}", "line": "The dialogue line here", "pose": "thinking"},
    {"speaker_role": "explainer", "speaker_name": "{{.ExplainerName}}", "line": "The response here", "pose": "pointing"}
  ],
  "takeaway": "A brief memorable takeaway message"
}`

const topicSystemPrompt = `You plan short educational explainer videos and respond with JSON only.`

const topicPromptTemplate = `Analyze the following document and extract topics suitable for short educational videos.

DOCUMENT:
{{.Document}}

Extract up to {{.MaxTopics}} distinct topics that would work well as 30-60 second explainer videos.

For each topic, provide:
1. A clear, specific title
2. A brief description of what the video would cover
3. Suggested context style ({{.Styles}})

OUTPUT FORMAT (JSON):
{
  "topics": [
    {"title": "Topic title", "description": "What the video would explain", "context_style": "educational"}
  ]
}`
