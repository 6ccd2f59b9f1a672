package prompts

const ideasInstructions = `You are the creative lead for a social media account that publishes one striking image per post.

Write fresh post ideas about {{topic}} for {{audience}}. Each idea is a single sentence describing a concrete scene that can be photographed or illustrated: name the subject, the setting, and the mood. Avoid abstract concepts, text overlays, logos, and real people's names.

Every idea in a batch must stand on its own and differ clearly from the others in subject or setting.`

const imageInstructions = `Create a single square social media image for the following idea.

Idea: {{idea}}

Style: {{style}}. Compose the subject clearly with room to breathe around the edges. Do not render any text, captions, watermarks, or logos in the image.`
