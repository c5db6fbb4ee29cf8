package quality

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"adcraft-api/internal/domain/entity"
)

// checkUnavailable 检查无法执行时 Detail 的前缀标记，带该标记的结果不计入均值
const checkUnavailable = "unavailable:"

// ArtifactAnalysis 视觉服务对渲染产物的一次完整分析
type ArtifactAnalysis struct {
	// FrameEmbeddings 采样帧的图像向量，用于产品出镜相似度检索
	FrameEmbeddings [][]float32 `json:"frame_embeddings"`
	// LegibilityScore 屏幕文字可读性得分（0-100）
	LegibilityScore float64 `json:"legibility_score"`
	// DominantColors 画面主色（#RRGGBB）
	DominantColors []string `json:"dominant_colors"`
	// MotionDefects 是否存在闪烁、扭曲等运动伪影
	MotionDefects bool `json:"motion_defects"`
}

// VisionAnalyzer 视觉分析服务抽象
// 生产实现调用真实视觉服务，测试实现返回固定分析结果
type VisionAnalyzer interface {
	// AnalyzeArtifact 分析渲染产物，返回帧向量、可读性、主色与运动伪影
	AnalyzeArtifact(ctx context.Context, artifactURL string) (*ArtifactAnalysis, error)

	// DetectText 检测指定时间窗内出现的屏幕文字
	DetectText(ctx context.Context, artifactURL string, start, end float64) ([]string, error)
}

// scoreProductPresence 产品出镜检查
// 用采样帧向量在租户素材向量中检索最大余弦相似度，相似度即出镜置信度
func (g *Gate) scoreProductPresence(ctx context.Context, tenantID string, analysis *ArtifactAnalysis) entity.CheckResult {
	result := entity.CheckResult{Type: entity.CheckProductPresence}
	if len(analysis.FrameEmbeddings) == 0 {
		result.Detail = checkUnavailable + " no frame embeddings in analysis"
		return result
	}

	var best float32
	var searched int
	for _, vec := range analysis.FrameEmbeddings {
		sim, err := g.vectorRepo.SearchMaxSimilarity(ctx, tenantID, vec)
		if err != nil {
			continue
		}
		searched++
		if sim > best {
			best = sim
		}
	}
	if searched == 0 {
		result.Detail = checkUnavailable + " vector search failed for all frames"
		return result
	}

	result.Score = float64(best) * 100
	result.Passed = result.Score >= g.cfg.ProductPresenceMin
	result.Detail = fmt.Sprintf("max similarity %.2f across %d frames", best, searched)
	return result
}

// scoreTextLegibility 文字可读性检查，直接采用视觉服务的评分
func (g *Gate) scoreTextLegibility(analysis *ArtifactAnalysis) entity.CheckResult {
	result := entity.CheckResult{
		Type:  entity.CheckTextLegibility,
		Score: analysis.LegibilityScore,
	}
	result.Passed = result.Score >= g.cfg.TextLegibilityMin
	result.Detail = fmt.Sprintf("legibility %.0f", result.Score)
	return result
}

// scoreColorConsistency 色彩一致性检查
// 画面主色与品牌主副色的最小色距越小得分越高
func (g *Gate) scoreColorConsistency(brand entity.Brand, analysis *ArtifactAnalysis) entity.CheckResult {
	result := entity.CheckResult{Type: entity.CheckColorConsistency}

	var palette []string
	if brand.PrimaryColor != "" {
		palette = append(palette, brand.PrimaryColor)
	}
	if brand.SecondaryColor != "" {
		palette = append(palette, brand.SecondaryColor)
	}
	if len(palette) == 0 || len(analysis.DominantColors) == 0 {
		result.Detail = checkUnavailable + " no brand palette or dominant colors"
		return result
	}

	// 每个品牌色取与主色集合的最小距离，整体取平均
	var total float64
	counted := 0
	for _, want := range palette {
		wr, wg, wb, err := parseHexColor(want)
		if err != nil {
			continue
		}
		best := math.MaxFloat64
		for _, got := range analysis.DominantColors {
			gr, gg, gb, err := parseHexColor(got)
			if err != nil {
				continue
			}
			if d := colorDistance(wr, wg, wb, gr, gg, gb); d < best {
				best = d
			}
		}
		if best < math.MaxFloat64 {
			total += best
			counted++
		}
	}
	if counted == 0 {
		result.Detail = checkUnavailable + " no parsable colors"
		return result
	}

	// 距离归一到 [0,1]（RGB 空间对角线长度），映射为 0-100 得分
	avg := total / float64(counted)
	normalized := avg / math.Sqrt(3*255*255)
	result.Score = math.Max(0, (1-normalized)*100)
	result.Passed = result.Score >= g.cfg.ColorConsistencyMin
	result.Detail = fmt.Sprintf("average palette distance %.1f", avg)
	return result
}

// parseHexColor 解析 #RRGGBB 颜色
func parseHexColor(s string) (r, g, b float64, err error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", s)
	}
	rv, err := strconv.ParseUint(s[0:2], 16, 8)
	if err != nil {
		return 0, 0, 0, err
	}
	gv, err := strconv.ParseUint(s[2:4], 16, 8)
	if err != nil {
		return 0, 0, 0, err
	}
	bv, err := strconv.ParseUint(s[4:6], 16, 8)
	if err != nil {
		return 0, 0, 0, err
	}
	return float64(rv), float64(gv), float64(bv), nil
}

// colorDistance RGB 空间欧氏距离
func colorDistance(r1, g1, b1, r2, g2, b2 float64) float64 {
	return math.Sqrt((r1-r2)*(r1-r2) + (g1-g2)*(g1-g2) + (b1-b2)*(b1-b2))
}
