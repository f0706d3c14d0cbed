// Package scriptgen is the script adapter: it prompts a language model for a
// two-character dialogue about a topic and parses the reply into a
// scene.Script.
//
// The prompt asks for roughly one line per three seconds of target duration
// and includes up to 2000 characters of optional source document. Replies
// are decoded leniently (code fences and surrounding prose are tolerated)
// but every line must carry a known speaker role. Missing speaker names are
// filled from the request and missing poses default to "standing".
//
// ExtractTopics proposes video topics from a longer document.
package scriptgen
