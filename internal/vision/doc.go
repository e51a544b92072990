// Package vision wraps multimodal model APIs behind a single Client.
//
// OpenAI and Ollama are plain JSON over HTTP; Gemini goes through the
// generative-ai-go SDK. Every client satisfies footer.VisionModel, so it can
// serve as a structured footer oracle, and species.Identifier uses the same
// interface for animal identification.
//
// Ready never makes a network call. It only checks that the client is
// configured, and returns an error wrapping ErrUnavailable when it is not.
package vision
