package battlelog

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOptions(policy ResultPolicy) Options {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return Options{Location: time.UTC, Policy: policy, Logger: l}
}

const uni5Head = `<html><head><title>Боевой доклад :: Звездная Империя 5</title></head><body>
<div class="report">В 19-06-2016 10:03:01 произошёл бой между следующими флотами:</div>
`

const uni5Participants = `<table class="report_user"><tr><td><span class="negative">Alice</span></td></tr></table>
<table class="report_user"><tr><td><span class="negative">Bob</span></td></tr></table>
<table class="report_user"><tr><td><span class="positive">Carol</span></td></tr></table>
`

const uni5Result = `<table class="report_result"><tr><td>Атакующий выиграл битву!<br>
Он получает 13.231 металла, 6.438 кристалла и 1.900 дейтерия<br>
Атакующий потерял 0 единиц.<br>
Обороняющийся потерял 8.000 единиц.<br>
Поле обломков: 600 металла и 600 кристалла.<br>
Шанс появления луны составляет 3%</td></tr></table>
</body></html>`

func fleetDiv(class, line string) string {
	return `<div class="report_fleet"><span class="` + class + `">` + line + `</span><table><tr><td>Тип</td></tr></table></div>` + "\n"
}

func uni5Page(fleets ...string) string {
	return uni5Head + uni5Participants + strings.Join(fleets, "") + uni5Result
}

func TestFleetReportFullBattle(t *testing.T) {
	page := uni5Page(
		fleetDiv("negative", "Атакующий Alice [1:2:3]"),
		fleetDiv("negative", "Атакующий Bob [1:5:7]"),
		fleetDiv("positive", "Защитник Carol [2:10:4]"),
	)

	rep, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, StatusBattle, rep.Status)
	assert.Equal(t, "19-06-2016 10:03:01", rep.TimeText)

	rec := rep.Record
	assert.Equal(t, time.Date(2016, 6, 19, 10, 3, 1, 0, time.UTC).Unix(), rec.LogTime)
	assert.Equal(t, "Alice,Bob", rec.Attacker)
	assert.Equal(t, "Carol", rec.Defender)
	assert.Equal(t, "[1:2:3],[1:5:7]", rec.AttackerCoords)
	assert.Equal(t, "[2:10:4]", rec.DefenderCoords)
	assert.Equal(t, int64(13231), rec.WinMetal)
	assert.Equal(t, int64(6438), rec.WinCrystal)
	assert.Equal(t, int64(1900), rec.WinDeuterium)
	assert.Equal(t, int64(0), rep.AttackerLoss)
	assert.Equal(t, int64(8000), rep.DefenderLoss)
	assert.Equal(t, int64(8000), rec.TotalLoss)
	assert.Equal(t, int64(600), rec.PoMetal)
	assert.Equal(t, int64(600), rec.PoCrystal)
	assert.Equal(t, int64(3), rec.MoonChance)
}

func TestFleetReportMissingCoordsShrinksList(t *testing.T) {
	page := uni5Page(
		fleetDiv("negative", "Атакующий Alice [1:2:3]"),
		fleetDiv("positive", "Защитник Carol [2:10:4]"),
	)

	rep, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, "Alice,Bob", rep.Record.Attacker)
	assert.Equal(t, "[1:2:3]", rep.Record.AttackerCoords)
}

func TestFleetReportFirstCoordsWin(t *testing.T) {
	page := uni5Page(
		fleetDiv("negative", "Атакующий Alice [1:2:3]"),
		fleetDiv("negative", "Атакующий Alice [4:4:4]"),
		fleetDiv("negative", "Атакующий Bob [1:5:7]"),
		fleetDiv("positive", "Защитник Carol [2:10:4]"),
	)

	rep, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, "[1:2:3],[1:5:7]", rep.Record.AttackerCoords)
}

func TestFleetReportOneNamePerParticipantTable(t *testing.T) {
	page := uni5Head +
		`<table class="report_user"><tr><td><span class="negative">Alice</span><span class="positive">Carol</span></td></tr></table>` +
		uni5Result

	rep, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, "Alice", rep.Record.Attacker)
	assert.Equal(t, "", rep.Record.Defender)
}

func TestFleetReportNonexistent(t *testing.T) {
	page := `<html><head><title>Сообщение :: Звездная Империя 5</title></head><body>
<table><tr><th class="errormessage">Запрашиваемого лога не существует в базе данных</th></tr></table>
</body></html>`

	rep, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, StatusNonexistent, rep.Status)
}

func TestFleetReportUnknownTitleIsIncomplete(t *testing.T) {
	page := `<html><head><title>Вход :: Звездная Империя 5</title></head><body><p>login please</p></body></html>`

	rep, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, rep.Status)
}

func TestFleetReportResultPolicy(t *testing.T) {
	broken := strings.Replace(uni5Page(), "Он получает 13.231 металла", "Он получает много металла", 1)

	_, err := Parse(broken, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "win resources", perr.What)

	rep, err := Parse(broken, NewFleetReportExtractor(quietOptions(PolicyLenient)))
	require.NoError(t, err)
	assert.Equal(t, StatusBattle, rep.Status)
	assert.Equal(t, int64(0), rep.Record.WinMetal)
	assert.Equal(t, int64(8000), rep.Record.TotalLoss)
}

func TestFleetReportBadTimestamp(t *testing.T) {
	page := strings.Replace(uni5Page(), "19-06-2016 10:03:01", "19-XX-2016 10:03:01", 1)

	_, err := Parse(page, NewFleetReportExtractor(quietOptions(PolicyStrict)))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "battle time", perr.What)
}

func TestSplitFleetLine(t *testing.T) {
	name, coords, ok := splitFleetLine("Атакующий Шахтерская лопятка [1:2:3]")
	require.True(t, ok)
	assert.Equal(t, "Шахтерская лопятка", name)
	assert.Equal(t, "[1:2:3]", coords)

	name, coords, ok = splitFleetLine("Защитник Злой фермер [1:2:5]")
	require.True(t, ok)
	assert.Equal(t, "Злой фермер", name)
	assert.Equal(t, "[1:2:5]", coords)

	_, _, ok = splitFleetLine("Атакующий без координат")
	assert.False(t, ok)
}

const legacyPage = `<html><head><title>ScumWir vs Сергей Такачёв (П: 1.471.000)</title></head><body>
<center>В 30-11-2015 03:25:26 произошёл бой между следующими флотами:</center>
<table><tr><th><span>Атакующий ScumWir [1:233:9]</span></th></tr></table>
<table><tr><th><span>Защитник Сергей Такачёв [1:211:7]</span></th></tr></table>
<p>Атакующий выиграл битву! Он получает 1.000 металла, 2.000 кристалла и 300 дейтерия</p>
<table><tr><td>Поле обломков: 45.000 металла и 12.300 кристалла.</td></tr></table>
</body></html>`

func TestTitleExtractorBattle(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	opts := quietOptions(PolicyStrict)
	opts.Location = msk

	rep, err := Parse(legacyPage, NewTitleExtractor(opts))
	require.NoError(t, err)
	assert.Equal(t, StatusBattle, rep.Status)
	assert.Equal(t, "30-11-2015 03:25:26", rep.TimeText)

	rec := rep.Record
	assert.Equal(t, time.Date(2015, 11, 30, 3, 25, 26, 0, msk).Unix(), rec.LogTime)
	assert.Equal(t, "ScumWir", rec.Attacker)
	assert.Equal(t, "Сергей Такачёв", rec.Defender)
	assert.Equal(t, "[1:233:9]", rec.AttackerCoords)
	assert.Equal(t, "[1:211:7]", rec.DefenderCoords)
	assert.Equal(t, int64(1471000), rec.TotalLoss)
	assert.Equal(t, int64(1000), rec.WinMetal)
	assert.Equal(t, int64(2000), rec.WinCrystal)
	assert.Equal(t, int64(300), rec.WinDeuterium)
	assert.Equal(t, int64(45000), rec.PoMetal)
	assert.Equal(t, int64(12300), rec.PoCrystal)
}

func TestTitleExtractorTitleParsing(t *testing.T) {
	tests := []struct {
		title    string
		attacker string
		defender string
		loss     int64
	}{
		{"Alice,Bob vs Carol (П: 1.471.000)", "Alice,Bob", "Carol", 1471000},
		{"Artik,kizzek,Uragan vs GART1610 (П: 1.601kk)", "Artik,kizzek,Uragan", "GART1610", 1601000000},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			page := "<html><head><title>" + tt.title + "</title></head><body>" +
				"<center>В 30-11-2015 03:25:26 произошёл бой между следующими флотами:</center></body></html>"
			rep, err := Parse(page, NewTitleExtractor(quietOptions(PolicyStrict)))
			require.NoError(t, err)
			assert.Equal(t, StatusBattle, rep.Status)
			assert.Equal(t, tt.attacker, rep.Record.Attacker)
			assert.Equal(t, tt.defender, rep.Record.Defender)
			assert.Equal(t, tt.loss, rep.Record.TotalLoss)
			// 攻撃側が複数のとき、座標の行はタイトルの並びと一致しないので空のまま
			assert.Equal(t, "", rep.Record.AttackerCoords)
		})
	}
}

func TestTitleExtractorClassification(t *testing.T) {
	nonexistent := `<html><head><title>Сообщение</title></head><body>
<center>Данный лог боя пока недоступен для просмотра!</center></body></html>`
	rep, err := Parse(nonexistent, NewTitleExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, StatusNonexistent, rep.Status)

	noTitle := `<html><head><title>Звездная Империя</title></head><body><center>что-то</center></body></html>`
	rep, err = Parse(noTitle, NewTitleExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, rep.Status)

	rep, err = Parse("", NewTitleExtractor(quietOptions(PolicyStrict)))
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, rep.Status)
}

func TestNewVariant(t *testing.T) {
	ex, err := New("uni5", Options{})
	require.NoError(t, err)
	assert.IsType(t, &fleetReportExtractor{}, ex)

	ex, err = New("legacy", Options{})
	require.NoError(t, err)
	assert.IsType(t, &titleExtractor{}, ex)

	_, err = New("uni9", Options{})
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy("Lenient")
	require.NoError(t, err)
	assert.Equal(t, PolicyLenient, p)

	_, err = ParsePolicy("maybe")
	assert.Error(t, err)
}
