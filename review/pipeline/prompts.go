package pipeline

import (
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
)

const validatorPromptTemplate = `[관련성 판별]
당신은 블로그 글이 특정 주제에 대한 실제 방문 후기인지 판별하는 전문가입니다.

주제: "%s"
글 제목: %s
글 내용(일부):
%s

[판단 기준]
- 글쓴이가 "%s"을(를) 직접 경험하고 쓴 후기여야 합니다.
- 이름이 비슷한 다른 행사나 장소(예: 앞뒤에 다른 단어가 붙은 이름)에 대한 글이면 관련 없음입니다.
- 여러 대상을 나열하거나 비교만 하는 글, 광고나 안내문 위주의 글도 관련 없음입니다.

[답변 형식]
관련 있으면 '예', 없으면 '아니오'로만 답하세요.`

const summarizerPromptTemplate = `[리뷰 요약]
당신은 한국어 리뷰의 감성 표현을 정확하게 찾아 표시하는 분석가입니다.
아래 글은 "%s"에 대한 후기입니다. 글의 내용을 긍정적인 점과 부정적인 점으로 나누어 요약하세요.

[마킹 규칙]
1. 감성이 담긴 핵심 표현은 ****표현**** 형식으로 감쌉니다.
2. 강조어, 완화어, 부정어 같은 수식어도 ****수식어**** 로 감싸고, 바로 뒤에 (수식어구: 꾸미는 표현)을 붙입니다.
   예시: - 공연이 ****정말****(수식어구: 환상적) ****환상적****이었다.
3. 한 줄에는 한 문장만 씁니다. 각 문장은 '- '로 시작합니다.
4. 글에 없는 내용은 지어내지 마세요. 해당하는 내용이 없으면 그 섹션은 비워 둡니다.

[참고 사전]
%s

[출력 형식]
- 긍정적인 점:
- (문장)
- 부정적인 점:
- (문장)

[글 제목]
%s

[글 내용]
%s`

const feedbackTemplate = `

[이전 요약에 대한 피드백]
%s

위 피드백을 바탕으로 요약을 다시 생성해주세요. 지적된 문장의 감성 표현을 문맥에 맞게 다시 고르고 마킹을 바로잡아야 합니다.`

const feedbackLineTemplate = "LLM 요약 내용 중 감성 점수 불일치 발생: '%s' 문장은 %s 문맥에 있지만, 점수는 %.2f로 잘못 계산되었습니다. 해당 문장의 감성을 다시 평가하고, 감성 표현을 정확히 마킹하여 요약해주세요."

const promptExamplesPerCategory = 5

func validatorPrompt(subject, title, text string) string {
	return fmt.Sprintf(validatorPromptTemplate, subject, title, text, subject)
}

func summarizerPrompt(subject, title, text, feedback string, store *lexicon.Store) string {
	p := fmt.Sprintf(summarizerPromptTemplate, subject, lexiconReference(store), title, text)
	if feedback != "" {
		p += fmt.Sprintf(feedbackTemplate, feedback)
	}
	return p
}

func lexiconReference(store *lexicon.Store) string {
	if store == nil {
		return "(없음)"
	}
	var b strings.Builder
	for _, c := range []lexicon.Category{lexicon.Amplifier, lexicon.Downtoner, lexicon.Negator, lexicon.Idiom} {
		ex := store.Examples(c, promptExamplesPerCategory)
		if len(ex) == 0 {
			continue
		}
		phrases := make([]string, 0, len(ex))
		for _, e := range ex {
			phrases = append(phrases, e.Phrase)
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Label(), strings.Join(phrases, ", "))
	}
	if b.Len() == 0 {
		return "(없음)"
	}
	return strings.TrimRight(b.String(), "\n")
}
