package analysis

import (
	"fmt"
	"strings"
)

const (
	noComplaints           = "특별한 불만 사항 없음"
	negativeSummaryFailure = "부정적 의견을 요약하는 데 실패했습니다."
)

const negativeSummaryTemplate = `[수집된 부정적인 의견]
- %s

[요청] 위 의견들을 종합하여 주요 불만 사항을 1., 2., 3. ... 형식의 목록으로 요약해주세요. 만약 의견이 없다면 '%s'이라고 답해주세요.`

func negativeSummaryPrompt(sentences []string) string {
	return fmt.Sprintf(negativeSummaryTemplate, strings.Join(sentences, "\n- "), noComplaints)
}

const interpretationTemplate = `다음은 리뷰의 종합 분석 데이터입니다. 모든 지표를 고려하여 전문가 입장에서 종합적인 해석을 제공해주세요.

**전체 리뷰 문장 수**: %d개

### 1. 전체 긍정/부정 비율
- 긍정 문장: %d개 (%.1f%%)
- 부정 문장: %d개 (%.1f%%)

### 2. 만족도 5단계 분포
%s
- 평균 만족도: %.2f / 5.0

### 3. 절대 점수 분포
- 최소 점수: %.2f
- 최대 점수: %.2f
- 중간값: %.2f
- 평균: %.2f
- 표준편차: %.2f

### 4. 이상치 분석
- 이상치 개수: %d개 (전체의 %.1f%%)
- 해석: %s

위 데이터를 모두 종합하여 다음을 포함하는 3-5문장의 종합 해석을 작성해주세요:
1. 전반적인 평가 경향 (긍정 vs 부정)
2. 만족도 분포의 특징 (어느 구간에 집중되어 있는지)
3. 감성 점수의 분포 특성 (극단적 vs 중립적)
4. 이상치 존재 여부와 의미
5. 종합적인 평가 및 시사점

간결하고 실용적인 인사이트를 제공해주세요.`

const (
	manyOutliers = "극단적인 의견이 다수 존재합니다."
	fewOutliers  = "대부분의 의견이 평균적인 범위 내에 있습니다."
)

// interpretationFallback is returned when the oracle cannot write the interpretation.
func interpretationFallback(avg, posPct float64) string {
	return fmt.Sprintf("평균 만족도는 %.2f / 5.0점입니다. 긍정 비율은 %.1f%%입니다.", avg, posPct)
}
