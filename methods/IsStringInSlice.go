package methods

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

func IsStringInSlice(s string, slice []string) bool {
	set := make(map[string]bool)
	for _, v := range slice {
		set[v] = true
	}
	return set[s]
}

func moveLeadingNumbersToEnd(s string) string {
	re := regexp.MustCompile(`^(\d+)(.*)$`)
	match := re.FindStringSubmatch(s)
	if len(match) == 3 {
		return match[2] + match[1]
	}
	return s
}

// filterString 去掉中英文数字下划线以外的字符
func filterString(str string) string {
	reg := regexp.MustCompile("[^\\p{Han}\\p{Latin}\\p{N}_]")
	result := reg.ReplaceAllString(str, "")
	return strings.ReplaceAll(result, " ", "")
}

// ConvertToInitials 将中文字符串转换为拼音首字母拼接字符串
func ConvertToInitials(hanzi string) string {
	hanzi = filterString(hanzi)
	a := pinyin.NewArgs()
	a.Style = pinyin.FirstLetter
	var result string
	for _, runeValue := range hanzi {
		if unicode.Is(unicode.Han, runeValue) {
			pinyinSlice := pinyin.SinglePinyin(runeValue, a)
			if len(pinyinSlice) > 0 {
				result += pinyinSlice[0]
			}
		} else {
			result += string(runeValue)
		}
	}
	processed := moveLeadingNumbersToEnd(result)
	return strings.ToLower(processed)
}
