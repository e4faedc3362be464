package scanning

// transcribePrompt is the shared prompt used by all LLM providers. The models
// only transcribe; interpreting the numbers is left to the extraction engine.
const transcribePrompt = `You are transcribing a photo of a receipt, most often from a fuel pump or gas station. Read every line of printed text in the image from top to bottom.

Rules:
- Copy each printed line exactly as it appears, including labels, currency symbols ($), decimal points and spacing between words.
- Do NOT correct, round, reformat or compute any numbers. If a price shows three decimals (e.g. 3.899), keep all three.
- Do NOT add lines that are not printed, and do not summarize.
- Skip lines that are completely unreadable.

Return ONLY valid JSON in this exact format:
{
  "lines": ["first line", "second line"]
}

Do not include any text before or after the JSON and do not use markdown code blocks.`

// transcribeSystemPrompt primes chat-style models that accept a system role
const transcribeSystemPrompt = "You are an OCR engine. You transcribe receipt text verbatim and never interpret it."
