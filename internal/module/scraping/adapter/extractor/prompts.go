package extractor

const systemPrompt = `You read screenshots of social network pages and answer with a single JSON object.
Use null for values that are not visible. Never invent data. Counts are integers (expand "1.2K" to 1200).`

const profileInfoPrompt = `This is a screenshot of a profile page.
Return JSON with these keys:
{"username": string, "bio": string|null, "is_private": boolean, "follower_count": integer|null,
 "following_count": integer|null, "post_count": integer|null, "verified": boolean}
"is_private" is true when the page says the account is private.`

const commentsPrompt = `This is a screenshot of a single post with its comments.
Return JSON: {"comments": [{"user_username": string, "user_url": string|null, "comment_text": string,
 "comment_likes": integer, "comment_replies": integer}]}
List every visible comment in display order. Do not include the post caption as a comment.`

const userInfoPrompt = `This is a screenshot of the profile page of the user "%s".
Return JSON: {"bio": string|null, "is_private": boolean|null, "follower_count": integer|null,
 "verified": boolean|null, "confidence": number}
"confidence" is between 0 and 1 and reflects how legible the profile was.`
