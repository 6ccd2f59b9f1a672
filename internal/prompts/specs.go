package prompts

const ideasSpec = `Respond with a JSON object matching this exact structure:

{
  "ideas": ["<idea 1>", "<idea 2>", "<idea 3>", "<idea 4>", "<idea 5>"]
}

Field constraints:
- ideas: Exactly {{count}} strings. Each string is one complete idea of at
  most 40 words. No numbering, bullets, or surrounding quotes inside the
  string. No two ideas may be the same.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Do not include any keys other than "ideas"
- Do not add commentary before or after the JSON object`
