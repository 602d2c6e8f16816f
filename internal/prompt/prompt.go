// Package prompt builds the refinement and feedback prompts sent to the
// text generator.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Supported prompt languages.
const (
	Korean  = "ko"
	English = "en"
	Auto    = "auto"
)

// DefaultLanguage is used when a preference is empty or unsupported.
const DefaultLanguage = Korean

var matcher = language.NewMatcher([]language.Tag{language.Korean, language.English})

// Normalize maps a BCP 47 preference ("ko-KR", "en_US", "auto") to one of
// Korean, English or Auto. Unparseable or unsupported values yield
// DefaultLanguage.
func Normalize(pref string) string {
	pref = strings.TrimSpace(strings.ToLower(pref))
	if pref == Auto {
		return Auto
	}
	if pref == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(strings.ReplaceAll(pref, "_", "-"))
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	if idx == 1 {
		return English
	}
	return Korean
}

// LanguageDetector guesses the ISO 639-1 code of a text.
type LanguageDetector interface {
	DetectISO(text string) (string, bool)
}

// Resolve returns the concrete language for pref. Auto consults det on
// sample and falls back to DefaultLanguage when det is nil or unsure.
func Resolve(pref string, det LanguageDetector, sample string) string {
	lang := Normalize(pref)
	if lang != Auto {
		return lang
	}
	if det == nil {
		return DefaultLanguage
	}
	if code, ok := det.DetectISO(sample); ok {
		if n := Normalize(code); n != Auto {
			return n
		}
	}
	return DefaultLanguage
}

const koreanRefineInstruction = `주어진 텍스트는 학생의 모의 면접 답변을 멘토가 타이핑한 메모입니다. 다음 지침에 따라 텍스트를 수정해 주세요. 그리고 답변은 수정한 텍스트 외의 다른 내용은 절대 포함하지 마세요. : 

1. 표현 및 문장 유지: 
  * 학생의 원래 표현과 문장 구조는 최대한 유지해 주세요. 
  * 내용의 의미가 바뀌지 않는 선에서 띄어쓰기, 오타, 아주 어색한 비문만 교정해 주세요. 
  * 단, 언디파인드(undefined), 자스(javascript), 타스(typescript), 바(var), 렛(let), 콘스트(const) 등의 기술 용어만 영문으로 수정해주세요.
  * 기술 용어 영문으로 수정 시 텍스트만 수정하고, **별도 기호는 넣지 마세요.**
2. 어미 변경: 꼬리 질문을 제외한 모든 '했다', '했습니다' 등의 서술어를 '~함.' 형태로 변경해 주세요. (예: "발표를 했다" → "발표를 했음.")
3. 꼬리 질문 처리 (필요한 경우에만 적용):
  * 만약 '- '로 시작하는 문장이 있다면, 이는 멘토의 꼬리 질문입니다.
  * 꼬리 질문은 실제 면접관이 묻는 것처럼 자연스럽고 완성된 문장으로 수정해 주세요. (예: "- ux개선 어던부분?" → "- UX 개선을 했다면 어떤 부분을 하셨나요?")
  * 꼬리 질문 이전에 **정확히 한 줄의 공백**을 두고 배치해 주세요.
  * **주의: 주어진 텍스트에 꼬리 질문이 없다면, 어떠한 질문도 추가하거나 생성하지 마세요.**

이 지침을 철저히 따라 텍스트를 수정해 주시기 바랍니다.`

const englishRefineInstruction = `The following text is a mentor's typed notes of a student's mock interview answer. Edit it according to the rules below and reply with the edited text only, nothing else.

1. Keep wording and sentence structure:
  * Preserve the student's original expressions and sentence structure as much as possible.
  * Only fix spacing, typos and clearly broken sentences, without changing the meaning.
  * Write technical terms (undefined, JavaScript, TypeScript, var, let, const, ...) in their usual English spelling, without adding any symbols.
2. Follow-up questions (only when present):
  * A line starting with "- " is a follow-up question from the mentor.
  * Rewrite it as a natural, complete question an interviewer would ask.
  * Put exactly one blank line before each follow-up question.
  * If the text has no follow-up question, do not add or invent one.`

// DefaultRefineInstruction returns the built-in refinement instruction.
func DefaultRefineInstruction(lang string) string {
	if lang == English {
		return englishRefineInstruction
	}
	return koreanRefineInstruction
}

// Refine joins an instruction and the text to refine. A blank instruction
// selects the default for lang.
func Refine(instruction, text, lang string) string {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultRefineInstruction(lang)
	}
	return fmt.Sprintf("%s\n\n---\n\n%s", instruction, text)
}

const koreanFeedbackRequirements = `## 피드백 요구사항:
1. 잘한 점과 아쉬운 점을 균형있게 포함
2. 기술적 측면과 협업 측면에서의 세부 피드백
3. 구체적이고 실행 가능한 개선 방안 제시
4. 응답은 한글 기준 400자 내외로 작성
5. 마크다운 형식을 사용하지 말고 일반 텍스트로만 작성

## 피드백 형식:
잘한 점:
- 기술적 측면
- 협업 측면
아쉬운 점:
- 기술적 측면
- 협업 측면
개선 방안:
- 구체적인 실행 방안`

const englishFeedbackRequirements = `## Feedback requirements:
1. Balance strengths and weaknesses
2. Give detailed feedback on technical and collaboration aspects
3. Suggest concrete, actionable improvements
4. Keep the response to about 150 words
5. Use plain text only, no markdown

## Feedback format:
Strengths:
- Technical
- Collaboration
Weaknesses:
- Technical
- Collaboration
Improvements:
- Concrete action items`

// Feedback builds the prompt asking for feedback on a question/answer pair.
// A non-blank custom prompt replaces the default requirements.
func Feedback(question, answer, custom, lang string) string {
	var sb strings.Builder

	if lang == English {
		sb.WriteString("Give constructive feedback on the following interview question and answer.\n\n")
		fmt.Fprintf(&sb, "Question: %s\nAnswer: %s\n\n", question, answer)
		if strings.TrimSpace(custom) != "" {
			sb.WriteString("## Feedback requirements:\n")
			sb.WriteString(custom)
		} else {
			sb.WriteString(englishFeedbackRequirements)
		}
		return sb.String()
	}

	sb.WriteString("주어진 질문과 답변에 대해 건설적인 피드백을 제공해주세요.\n\n")
	fmt.Fprintf(&sb, "질문: %s\n답변: %s\n\n", question, answer)
	if strings.TrimSpace(custom) != "" {
		sb.WriteString("## 피드백 요구사항:\n")
		sb.WriteString(custom)
	} else {
		sb.WriteString(koreanFeedbackRequirements)
	}
	return sb.String()
}
