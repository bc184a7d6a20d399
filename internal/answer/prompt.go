package answer

// answerRules is the shared instruction block for both delivery modes.
// The citation format here must stay parseable by the citation regex:
// answers are post-processed on the assumption that every grounded claim
// carries an inline (surah:ayah) marker.
const answerRules = `Rules:
1. Base every claim strictly on the verses provided in the context. Do not use outside knowledge of the Quran.
2. Cite each claim with the verse reference in (surah:ayah) form immediately after the claim, for example (2:153).
3. Only cite verses that appear in the provided context.
4. If the context does not answer the question, say so plainly instead of guessing.
5. Describe what the text says; do not issue religious rulings or personal verdicts.`

const systemPrompt = `You are a careful assistant that answers questions about the Quran using only the verse passages supplied with each question.

` + answerRules

// verificationSystemPrompt replaces systemPrompt on the verification pass:
// the model edits an existing draft rather than composing, so the
// instruction is stricter and forbids new material.
const verificationSystemPrompt = `You are a strict reviewer checking a draft answer about the Quran against the verse passages supplied with it. You do not add new claims or new information; you only correct, cite, or remove what the draft already says. Any claim the supplied passages cannot support must be removed or flagged as unsupported.

` + answerRules

// generationPrompt requests the structured JSON envelope used by the
// synchronous path. %s placeholders: context block, question.
const generationPrompt = `Context verses:
%s

Question: %s

Respond with a single JSON object, no code fences, in exactly this shape:
{"answer_markdown": "<markdown answer with inline (surah:ayah) citations>", "citations": [{"surah": 2, "ayah": 153}], "uncertainty": "<empty string, or a short note if you are unsure>"}

The citations array must list every verse cited in answer_markdown.`

// verificationPrompt asks the model to check a draft against the context.
// %s placeholders: context block, question, draft answer.
const verificationPrompt = `Context verses:
%s

Question: %s

Draft answer:
%s

Review the draft against the context verses. Fix any claim that is not supported by the context, add missing (surah:ayah) citations, and remove citations to verses not in the context. If the context cannot support an answer, say so.

Respond with a single JSON object, no code fences, in exactly this shape:
{"answer_markdown": "<corrected markdown answer>", "citations": [{"surah": 2, "ayah": 153}], "uncertainty": "<empty string, or a short note about remaining uncertainty>"}`

// streamPrompt requests plain markdown for incremental delivery; the JSON
// envelope is unreadable mid-stream, so citations are recovered from the
// final text instead. %s placeholders: context block, question.
const streamPrompt = `Context verses:
%s

Question: %s

Write the answer in markdown with inline (surah:ayah) citations. Do not wrap the answer in JSON or code fences.`
